package sqlxrepos

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/eduflow/eduflow/core"
	"github.com/eduflow/eduflow/core/user"
)

// psql builds queries with postgres $N placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const userTable = `"user"`

var userColumns = []string{
	"id", "name", "email", "role", "avatar", "is_active",
	"password_hash", "created_at", "updated_at", "last_login",
}

type dbUser struct {
	ID           string      `db:"id"`
	Name         null.String `db:"name"`
	Email        null.String `db:"email"`
	Role         null.String `db:"role"`
	Avatar       null.String `db:"avatar"`
	IsActive     null.Bool   `db:"is_active"`
	PasswordHash null.Bytes  `db:"password_hash"`
	CreatedAt    null.Time   `db:"created_at"`
	UpdatedAt    null.Time   `db:"updated_at"`
	LastLogin    null.Time   `db:"last_login"`
}

func marshalUser(usr user.User) dbUser {
	return dbUser{
		ID:           usr.ID,
		Name:         null.NewString(usr.Name, usr.Name != ""),
		Email:        null.NewString(usr.Email, usr.Email != ""),
		Role:         null.NewString(usr.Role, usr.Role != ""),
		Avatar:       null.NewString(usr.Avatar, usr.Avatar != ""),
		IsActive:     null.BoolFromPtr(usr.IsActive),
		PasswordHash: null.BytesFrom(usr.PasswordHash),
		CreatedAt:    null.NewTime(usr.CreatedAt.UTC(), !usr.CreatedAt.IsZero()),
		UpdatedAt:    null.NewTime(usr.UpdatedAt.UTC(), !usr.UpdatedAt.IsZero()),
		LastLogin:    null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
}

func (u dbUser) unmarshal() user.User {
	return user.User{
		ID:           u.ID,
		Name:         u.Name.String,
		Email:        u.Email.String,
		Role:         u.Role.String,
		Avatar:       u.Avatar.String,
		IsActive:     u.IsActive.Ptr(),
		PasswordHash: u.PasswordHash.Bytes,
		CreatedAt:    u.CreatedAt.Time,
		UpdatedAt:    u.UpdatedAt.Time,
		LastLogin:    u.LastLogin.Time,
	}
}

func (u dbUser) values() []interface{} {
	return []interface{}{
		u.ID, u.Name, u.Email, u.Role, u.Avatar, u.IsActive,
		u.PasswordHash, u.CreatedAt, u.UpdatedAt, u.LastLogin,
	}
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{db: db}
}

// trapNoRowsErr maps psql "no rows" err to user.ErrNotFound
func (repo userRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return user.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...user.User) error {
	qb := psql.Select("COUNT(*)").From(userTable).Where(sq.Eq{"email": email})
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		qb = qb.Where(sq.NotEq{"id": ids})
	}
	query, args, err := qb.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}

	var count int
	if err = repo.db.GetContext(ctx, &count, query, args...); err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if count > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = uuid.New().String()
	u := marshalUser(usr)

	query, args, err := psql.Insert(userTable).Columns(userColumns...).Values(u.values()...).ToSql()
	if err != nil {
		return user.User{}, errors.Wrap(err, "building query")
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	return repo.getUser(ctx, sq.Eq{"id": id})
}

func (repo userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	return repo.getUser(ctx, sq.Eq{"email": email})
}

func (repo userRepository) getUser(ctx context.Context, pred interface{}) (user.User, error) {
	query, args, err := psql.Select(userColumns...).From(userTable).Where(pred).ToSql()
	if err != nil {
		return user.User{}, errors.Wrap(err, "building query")
	}

	var u dbUser
	if err = repo.db.GetContext(ctx, &u, query, args...); err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "getting user")
	}
	return u.unmarshal(), nil
}

func (repo userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	qb := psql.Select(userColumns...).From(userTable)

	if filter != nil {
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			qb = qb.Where(sq.Or{sq.ILike{"name": val}, sq.ILike{"email": val}})
		}
		if filter.Role != "" {
			qb = qb.Where(sq.Eq{"role": filter.Role})
		}
		if filter.IsActive != nil {
			qb = qb.Where(sq.Eq{"is_active": *filter.IsActive})
		}
		if !filter.CreatedFrom.IsZero() {
			qb = qb.Where(sq.GtOrEq{"created_at": filter.CreatedFrom.UTC()})
		}
		if !filter.CreatedTo.IsZero() {
			qb = qb.Where(sq.LtOrEq{"created_at": filter.CreatedTo.UTC()})
		}
	}
	for _, ord := range ordering {
		qb = qb.OrderBy(ord.String())
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}

	var dbUsers []dbUser
	if err = repo.db.SelectContext(ctx, &dbUsers, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(dbUsers))
	for _, u := range dbUsers {
		users = append(users, u.unmarshal())
	}
	return users, nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, isActive *bool) (user.User, error) {
	qb := psql.Update(userTable).Where(sq.Eq{"id": usr.ID})

	// only save set fields
	if usr.Name != "" {
		qb = qb.Set("name", usr.Name)
	}
	if usr.Email != "" {
		qb = qb.Set("email", usr.Email)
	}
	if usr.Role != "" {
		qb = qb.Set("role", usr.Role)
	}
	if usr.Avatar != "" {
		qb = qb.Set("avatar", usr.Avatar)
	}
	if len(usr.PasswordHash) > 0 {
		qb = qb.Set("password_hash", usr.PasswordHash)
	}
	if !usr.UpdatedAt.IsZero() {
		qb = qb.Set("updated_at", usr.UpdatedAt.UTC())
	}
	if !usr.LastLogin.IsZero() {
		qb = qb.Set("last_login", usr.LastLogin.UTC())
	}
	if isActive != nil {
		qb = qb.Set("is_active", *isActive)
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return user.User{}, errors.Wrap(err, "building query")
	}
	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return repo.GetUserByID(ctx, usr.ID)
}

func (repo userRepository) UpdateOrCreateUser(ctx context.Context, usr user.User) (user.User, error) {
	if usr.ID != "" {
		if _, err := repo.GetUserByID(ctx, usr.ID); err == nil {
			return repo.UpdateUser(ctx, usr, usr.IsActive)
		} else if errors.Cause(err) != user.ErrNotFound {
			return user.User{}, err
		}
	}
	return repo.CreateUser(ctx, usr)
}

func (repo userRepository) DeleteUsersByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := psql.Delete(userTable).Where(sq.Eq{"id": ids}).ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	return nil
}

package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/eduflow/eduflow/core"
	"github.com/eduflow/eduflow/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) *userRepository {
	return &userRepository{db: db}
}

func (repo *userRepository) query() []user.User {
	users := make([]user.User, 0, len(repo.db.users))
	for _, u := range repo.db.users {
		users = append(users, *u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.Before(users[j].CreatedAt) })
	return users
}

func (repo *userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...user.User) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	excluded := make(map[string]bool, len(excludedUsers))
	for _, u := range excludedUsers {
		excluded[u.ID] = true
	}
	for _, usr := range repo.query() {
		if strings.EqualFold(usr.Email, email) && !excluded[usr.ID] {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	usr.ID = uuid.New().String()
	repo.db.users[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if usr, ok := repo.db.users[id]; ok {
		return *usr, nil
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, usr := range repo.query() {
		if strings.EqualFold(usr.Email, email) {
			return usr, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var users []user.User
	for _, usr := range repo.query() {
		if filter != nil && !matchUser(usr, filter) {
			continue
		}
		users = append(users, usr)
	}
	sortUsers(users, ordering)
	return users, nil
}

func sortUsers(users []user.User, ordering []core.DBOrdering) {
	for i := len(ordering) - 1; i >= 0; i-- {
		ord := ordering[i]
		sort.SliceStable(users, func(a, b int) bool {
			var cmp int
			switch ord.Field {
			case "name":
				cmp = strings.Compare(users[a].Name, users[b].Name)
			case "email":
				cmp = strings.Compare(users[a].Email, users[b].Email)
			case "created_at":
				cmp = compareTimes(users[a].CreatedAt, users[b].CreatedAt)
			case "last_login":
				cmp = compareTimes(users[a].LastLogin, users[b].LastLogin)
			}
			if ord.Ascending {
				return cmp < 0
			}
			return cmp > 0
		})
	}
}

func matchUser(usr user.User, filter *user.QueryFilter) bool {
	if filter.Search != "" {
		kw := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(usr.Name), kw) &&
			!strings.Contains(strings.ToLower(usr.Email), kw) {
			return false
		}
	}
	if filter.Role != "" && usr.Role != filter.Role {
		return false
	}
	if filter.IsActive != nil {
		if usr.IsActive == nil || *usr.IsActive != *filter.IsActive {
			return false
		}
	}
	if !filter.CreatedFrom.IsZero() && usr.CreatedAt.Before(filter.CreatedFrom) {
		return false
	}
	if !filter.CreatedTo.IsZero() && usr.CreatedAt.After(filter.CreatedTo) {
		return false
	}
	return true
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User, isActive *bool) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	// only save set fields
	origUsr, ok := repo.db.users[usr.ID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	if usr.Name != "" {
		origUsr.Name = usr.Name
	}
	if usr.Email != "" {
		origUsr.Email = usr.Email
	}
	if usr.Role != "" {
		origUsr.Role = usr.Role
	}
	if usr.Avatar != "" {
		origUsr.Avatar = usr.Avatar
	}
	if len(usr.PasswordHash) > 0 {
		origUsr.PasswordHash = usr.PasswordHash
	}
	if !usr.UpdatedAt.IsZero() {
		origUsr.UpdatedAt = usr.UpdatedAt
	}
	if !usr.LastLogin.IsZero() {
		origUsr.LastLogin = usr.LastLogin
	}
	if isActive != nil {
		origUsr.SetActive(*isActive)
	}
	return *origUsr, nil
}

func (repo *userRepository) UpdateOrCreateUser(ctx context.Context, usr user.User) (user.User, error) {
	if usr.ID != "" {
		if existing, err := repo.UpdateUser(ctx, usr, usr.IsActive); err == nil {
			return existing, nil
		}
	}
	return repo.CreateUser(ctx, usr)
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids ...string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, id := range ids {
		delete(repo.db.users, id)
	}
	return nil
}

package user

import (
	"github.com/eduflow/eduflow/core"
)

type serviceMock struct {
	service
}

// NewServiceMock returns a Service whose side effects (mailing) run synchronously,
// so tests can assert on them.
func NewServiceMock(repo Repository, mailSvc core.EmailService, conf *core.Config) Service {
	secretKey = conf.SecretKey
	passwordResetTimeoutDelta = conf.PasswordResetTimeoutDelta
	return &serviceMock{
		service: service{
			repo:    repo,
			mailSvc: mailSvc,
			conf:    conf,
		},
	}
}

func (svc *serviceMock) RequestPasswordReset(email string) error {
	ctx, cancel := svc.reqCtx()
	defer cancel()

	usr, err := svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		return err
	}
	// run synchronously
	svc.sendPasswordResetMail(usr)
	return nil
}

package user

import (
	"context"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/cronograma/core"
)

var (
	// errors
	ErrNotFound    = errors.New("user not found")
	ErrEmailExists = errors.New("a user with this email already exists")
)

type (
	Repository interface {
		CreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		GetUser(ctx context.Context, id int64, exec ...core.DBExecutor) (User, error)
		GetUserByEmail(ctx context.Context, email string, exec ...core.DBExecutor) (User, error)
		ListUsersByID(ctx context.Context, ids []int64, exec ...core.DBExecutor) ([]User, error)
		UpdateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
	}

	Service struct {
		repo       Repository
		validate   *validator.Validate
		translator ut.Translator
		conf       *core.Config
	}
)

func NewService(repo Repository, validate *validator.Validate, translator ut.Translator, conf *core.Config) *Service {
	return &Service{repo: repo, validate: validate, translator: translator, conf: conf}
}

func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.Timezone = core.CleanString(nu.Timezone)
	if err := svc.validate.Struct(nu); err != nil {
		return User{}, core.ValidationErrorFrom(err, svc.translator)
	}

	if _, err := svc.repo.GetUserByEmail(ctx, nu.Email); err == nil {
		return User{}, core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
	} else if err != ErrNotFound {
		return User{}, errors.Wrap(err, "checking email uniqueness")
	}

	if nu.Timezone == "" {
		nu.Timezone = svc.conf.DefaultTimezone
	}
	now := core.Now()
	usr := User{
		Name:      nu.Name,
		Email:     nu.Email,
		Timezone:  nu.Timezone,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if nu.TelegramChatID != 0 {
		usr.TelegramChatID = null.Int64From(nu.TelegramChatID)
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *Service) GetByID(ctx context.Context, id int64) (User, error) {
	return svc.repo.GetUser(ctx, id)
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
}

// Location returns the timezone of the user `id`, or the configured default.
func (svc *Service) Location(ctx context.Context, id int64) (*time.Location, error) {
	usr, err := svc.repo.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	return usr.Location(svc.conf.Location()), nil
}

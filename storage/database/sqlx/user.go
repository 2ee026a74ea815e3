package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/cronograma/core"
	"github.com/trezcool/cronograma/core/user"
)

const userColumns = "id, name, email, timezone, telegram_chat_id, created_at, updated_at"

type userRepository struct {
	repository
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(exec core.DBExecutor) *userRepository {
	return &userRepository{repository{exec: exec}}
}

func normalizeUser(u user.User) user.User {
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return u
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	id, err := insert(ctx, repo.getExec(exec),
		"INSERT INTO users (name, email, timezone, telegram_chat_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
		usr.Name, usr.Email, usr.Timezone, usr.TelegramChatID, usr.CreatedAt.UTC(), usr.UpdatedAt.UTC())
	if err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	usr.ID = id
	return normalizeUser(usr), nil
}

func (repo userRepository) get(ctx context.Context, where string, arg interface{}, exec []core.DBExecutor) (user.User, error) {
	exe := repo.getExec(exec)
	var usr user.User
	if err := exe.GetContext(ctx, &usr, exe.Rebind("SELECT "+userColumns+" FROM users WHERE "+where), arg); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "getting user")
	}
	return normalizeUser(usr), nil
}

func (repo userRepository) GetUser(ctx context.Context, id int64, exec ...core.DBExecutor) (user.User, error) {
	return repo.get(ctx, "id = ?", id, exec)
}

func (repo userRepository) GetUserByEmail(ctx context.Context, email string, exec ...core.DBExecutor) (user.User, error) {
	return repo.get(ctx, "email = ?", email, exec)
}

func (repo userRepository) ListUsersByID(ctx context.Context, ids []int64, exec ...core.DBExecutor) ([]user.User, error) {
	if len(ids) == 0 {
		return []user.User{}, nil
	}
	exe := repo.getExec(exec)
	q, args, err := sqlx.In("SELECT "+userColumns+" FROM users WHERE id IN (?) ORDER BY id", ids)
	if err != nil {
		return nil, errors.Wrap(err, "building users query")
	}
	users := make([]user.User, 0, len(ids))
	if err = exe.SelectContext(ctx, &users, exe.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "listing users")
	}
	for i := range users {
		users[i] = normalizeUser(users[i])
	}
	return users, nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	exe := repo.getExec(exec)
	res, err := exe.ExecContext(ctx,
		exe.Rebind("UPDATE users SET name = ?, email = ?, timezone = ?, telegram_chat_id = ?, updated_at = ? WHERE id = ?"),
		usr.Name, usr.Email, usr.Timezone, usr.TelegramChatID, usr.UpdatedAt.UTC(), usr.ID)
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if err = checkAffected(res, user.ErrNotFound); err != nil {
		return user.User{}, err
	}
	return normalizeUser(usr), nil
}

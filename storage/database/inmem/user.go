package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/cronograma/core"
	"github.com/trezcool/cronograma/core/user"
)

var _ user.Repository = (*userRepository)(nil)

// userRepository keeps users in memory; the exec arguments are ignored.
type userRepository struct {
	db *userTable
}

func NewUserRepository(db *DB) *userRepository {
	return &userRepository{db: db.user}
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.lastID++
	usr.ID = repo.db.lastID
	repo.db.table[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) GetUser(_ context.Context, id int64, _ ...core.DBExecutor) (user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if usr, ok := repo.db.table[id]; ok {
		return *usr, nil
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetUserByEmail(_ context.Context, email string, _ ...core.DBExecutor) (user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, usr := range repo.db.table {
		if usr.Email == email {
			return *usr, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

// ListUsersByID returns the known users among ids, ordered by id.
func (repo *userRepository) ListUsersByID(_ context.Context, ids []int64, _ ...core.DBExecutor) ([]user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	users := make([]user.User, 0, len(ids))
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if usr, ok := repo.db.table[id]; ok && !seen[id] {
			seen[id] = true
			users = append(users, *usr)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	origUsr, ok := repo.db.table[usr.ID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	origUsr.Name = usr.Name
	origUsr.Email = usr.Email
	origUsr.Timezone = usr.Timezone
	origUsr.TelegramChatID = usr.TelegramChatID
	origUsr.UpdatedAt = usr.UpdatedAt
	return *origUsr, nil
}

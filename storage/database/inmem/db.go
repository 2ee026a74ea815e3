package inmemdb

import (
	"sync"

	"github.com/trezcool/cronograma/core/user"
)

type (
	DB struct {
		user *userTable
	}

	userTable struct {
		sync.RWMutex
		table  map[int64]*user.User
		lastID int64
	}
)

func Open() *DB {
	return &DB{
		user: &userTable{table: make(map[int64]*user.User)},
	}
}

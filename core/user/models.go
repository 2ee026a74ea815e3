package user

import (
	"net/mail"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/cronograma/core"
)

type (
	User struct {
		ID             int64      `db:"id" json:"id"`
		Name           string     `db:"name" json:"name"`
		Email          string     `db:"email" json:"email"`
		Timezone       string     `db:"timezone" json:"timezone"`
		TelegramChatID null.Int64 `db:"telegram_chat_id" json:"telegram_chat_id"`
		CreatedAt      time.Time  `db:"created_at" json:"created_at"`
		UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
	}

	NewUser struct {
		Name           string `json:"name" validate:"required,max=120"`
		Email          string `json:"email" validate:"required,email"`
		Timezone       string `json:"timezone" validate:"omitempty,timezone"`
		TelegramChatID int64  `json:"telegram_chat_id"`
	}
)

// Location returns the user's timezone, or fallback when unset or unknown.
func (u User) Location(fallback *time.Location) *time.Location {
	return core.LoadLocation(u.Timezone, fallback)
}

func (u User) Address() mail.Address {
	return mail.Address{Name: u.Name, Address: u.Email}
}

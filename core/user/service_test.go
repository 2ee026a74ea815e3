package user_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/cronograma/core"
	"github.com/trezcool/cronograma/core/user"
	"github.com/trezcool/cronograma/storage/database/inmem"
	"github.com/trezcool/cronograma/tests"
)

var ctx = context.Background()

func newService() *user.Service {
	validate, translator := testutil.Validator()
	return user.NewService(inmemdb.NewUserRepository(inmemdb.Open()), validate, translator, testutil.Config())
}

func TestService_Create(t *testing.T) {
	now := time.Date(2026, 11, 2, 12, 0, 0, 0, time.UTC)
	testutil.FreezeTime(t, now)
	svc := newService()

	usr, err := svc.Create(ctx, user.NewUser{Name: "  Ana ", Email: " Ana@Example.COM", TelegramChatID: 42})
	require.NoError(t, err)
	assert.Equal(t, int64(1), usr.ID)
	assert.Equal(t, "Ana", usr.Name)
	assert.Equal(t, "ana@example.com", usr.Email)
	assert.Equal(t, "America/Sao_Paulo", usr.Timezone)
	assert.Equal(t, int64(42), usr.TelegramChatID.Int64)
	assert.Equal(t, now, usr.CreatedAt)

	tests := []struct {
		name      string
		nu        user.NewUser
		wantField string
	}{
		{name: "missing name", nu: user.NewUser{Email: "bia@example.com"}, wantField: "name"},
		{name: "invalid email", nu: user.NewUser{Name: "Bia", Email: "bia"}, wantField: "email"},
		{name: "unknown timezone", nu: user.NewUser{Name: "Bia", Email: "bia@example.com", Timezone: "Mars/Olympus"}, wantField: "timezone"},
		{name: "email taken", nu: user.NewUser{Name: "Ana 2", Email: "ANA@example.com"}, wantField: "email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.nu)
			var verr *core.ValidationError
			require.True(t, errors.As(err, &verr), "unexpected error: %v", err)
			assert.True(t, verr.HasField(tt.wantField), "fields: %v", verr.Fields)
		})
	}
}

func TestService_Lookups(t *testing.T) {
	svc := newService()
	ana, err := svc.Create(ctx, user.NewUser{Name: "Ana", Email: "ana@example.com", Timezone: "Europe/Lisbon"})
	require.NoError(t, err)

	got, err := svc.GetByEmail(ctx, " ANA@example.com ")
	require.NoError(t, err)
	assert.Equal(t, ana, got)

	got, err = svc.GetByID(ctx, ana.ID)
	require.NoError(t, err)
	assert.Equal(t, ana, got)

	_, err = svc.GetByEmail(ctx, "lol@example.com")
	assert.Equal(t, user.ErrNotFound, err)

	loc, err := svc.Location(ctx, ana.ID)
	require.NoError(t, err)
	assert.Equal(t, "Europe/Lisbon", loc.String())

	_, err = svc.Location(ctx, 999)
	assert.Equal(t, user.ErrNotFound, err)
}

func TestUser_Location(t *testing.T) {
	fallback := time.UTC
	tests := []struct {
		name     string
		timezone string
		want     string
	}{
		{name: "set", timezone: "America/Manaus", want: "America/Manaus"},
		{name: "unset", want: "UTC"},
		{name: "unknown", timezone: "Mars/Olympus", want: "UTC"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, user.User{Timezone: tt.timezone}.Location(fallback).String())
		})
	}
}

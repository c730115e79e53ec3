package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepository_GetByUserName(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := &UserRepository{db: db}

	now := time.Now().UTC()
	mock.ExpectQuery("SELECT (.+) FROM users WHERE user_name=").
		WithArgs("jamie").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "user_name", "password", "created_at", "updated_at"}).
			AddRow("u-1", "Jamie", "jamie", "hashed", now, now))

	user, err := repo.GetByUserName(context.Background(), "jamie")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "u-1", user.ID)
	assert.Equal(t, "jamie", user.UserName)
}

func TestUserRepository_GetById_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := &UserRepository{db: db}

	mock.ExpectQuery("SELECT (.+) FROM users WHERE id=").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "user_name", "password", "created_at", "updated_at"}))

	user, err := repo.GetById(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, user)
}

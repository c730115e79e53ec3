package persistence

import (
	"context"
	"database/sql/driver"
	"encoding/base64"
	"testing"
	"time"

	"event-sync/domain/model"
	"event-sync/infrastructure/crypto"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCipher(t *testing.T) *crypto.TokenCipher {
	t.Helper()
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	cipher, err := crypto.NewTokenCipher(base64.StdEncoding.EncodeToString(key))
	require.NoError(t, err)
	return cipher
}

// decryptsTo matches a stored argument that is a real ciphertext of want:
// not the plaintext itself, and decryptable back to it.
type decryptsTo struct {
	cipher *crypto.TokenCipher
	want   string
}

func (d decryptsTo) Match(v driver.Value) bool {
	s, ok := v.(string)
	if !ok || s == d.want {
		return false
	}
	got, err := d.cipher.Decrypt(s)
	return err == nil && got == d.want
}

var connectionCols = []string{
	"id", "owner_id", "platform", "platform_user_id", "platform_page_id", "platform_username",
	"access_token", "refresh_token", "token_expires_at", "metadata", "is_active", "last_synced_at",
	"created_at", "updated_at",
}

// TestConnectionRepository_UpsertEncryptsTokens verifies tokens never reach
// the database in plaintext.
func TestConnectionRepository_UpsertEncryptsTokens(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	cipher := testCipher(t)
	repo := &ConnectionRepository{db: db, cipher: cipher}

	now := time.Now().UTC()
	mock.ExpectQuery("INSERT INTO platform_connections").
		WithArgs(
			"owner-1", "facebook", "fb-user-9", sqlmock.AnyArg(), sqlmock.AnyArg(),
			decryptsTo{cipher, "page-token"}, decryptsTo{cipher, "refresh-token"},
			sqlmock.AnyArg(), sqlmock.AnyArg(), true, sqlmock.AnyArg(),
		).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(7), now, now))

	pageID := "page-1"
	stored, err := repo.Upsert(context.Background(), &model.PlatformConnection{
		OwnerID:        "owner-1",
		Platform:       "facebook",
		PlatformUserID: "fb-user-9",
		PlatformPageID: &pageID,
		AccessToken:    "page-token",
		RefreshToken:   "refresh-token",
		IsActive:       true,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), stored.ID)
	// The caller-facing struct keeps the plaintext.
	assert.Equal(t, "page-token", stored.AccessToken)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestConnectionRepository_ReadDecryptsTransparently feeds stored ciphertext
// back through a query and expects plaintext out.
func TestConnectionRepository_ReadDecryptsTransparently(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	cipher := testCipher(t)
	repo := &ConnectionRepository{db: db, cipher: cipher}

	encAccess, err := cipher.Encrypt("page-token")
	require.NoError(t, err)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT (.+) FROM platform_connections").
		WithArgs("owner-1").
		WillReturnRows(sqlmock.NewRows(connectionCols).AddRow(
			int64(1), "owner-1", "facebook", "fb-user-9", "page-1", "Jamie",
			encAccess, nil, nil, []byte(`{"page_name":"My Venue"}`), true, nil, now, now,
		))

	conns, err := repo.ActiveConnectionsFor(context.Background(), "owner-1", nil)
	require.NoError(t, err)
	require.Len(t, conns, 1)
	assert.Equal(t, "page-token", conns[0].AccessToken)
	assert.Equal(t, "", conns[0].RefreshToken)
	assert.Equal(t, "My Venue", conns[0].Metadata["page_name"])
	require.NotNil(t, conns[0].PlatformPageID)
	assert.Equal(t, "page-1", *conns[0].PlatformPageID)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestConnectionRepository_CorruptedTokenSurfaces: a row that no longer
// decrypts is an error, not a connection with an empty token.
func TestConnectionRepository_CorruptedTokenSurfaces(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := &ConnectionRepository{db: db, cipher: testCipher(t)}

	now := time.Now().UTC()
	mock.ExpectQuery("SELECT (.+) FROM platform_connections").
		WithArgs("owner-1").
		WillReturnRows(sqlmock.NewRows(connectionCols).AddRow(
			int64(1), "owner-1", "facebook", "fb-user-9", nil, nil,
			"not-a-ciphertext", nil, nil, []byte(`{}`), true, nil, now, now,
		))

	_, err = repo.ActiveConnectionsFor(context.Background(), "owner-1", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, crypto.ErrDecrypt)
}

func TestConnectionRepository_GetByOwnerAndPlatform_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := &ConnectionRepository{db: db, cipher: testCipher(t)}

	mock.ExpectQuery("SELECT (.+) FROM platform_connections").
		WithArgs("owner-1", "google").
		WillReturnRows(sqlmock.NewRows(connectionCols))

	conn, err := repo.GetByOwnerAndPlatform(context.Background(), "owner-1", "google")
	require.NoError(t, err)
	assert.Nil(t, conn)
}

func TestConnectionRepository_Deactivate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := &ConnectionRepository{db: db, cipher: testCipher(t)}

	mock.ExpectExec("UPDATE platform_connections SET is_active=FALSE").
		WithArgs(sqlmock.AnyArg(), int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Deactivate(context.Background(), 7))
	require.NoError(t, mock.ExpectationsWereMet())
}

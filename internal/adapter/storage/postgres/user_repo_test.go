package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"qr-wallet/internal/core/domain"
	"qr-wallet/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestUser() *domain.Identity {
	return &domain.Identity{
		ID:            uuid.NewString(),
		DisplayName:   "Alice",
		PhoneNumber:   "+15550100001",
		WalletID:      "W000000000001",
		PINHash:       "$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA",
		PublicKey:     "cHVi",
		PrivateKeyEnc: "ZW5j",
		Balance:       decimal.RequireFromString("100.00"),
		CreatedAt:     time.Now().UTC().Truncate(time.Microsecond),
	}
}

func userColumnNames() []string {
	return []string{"id", "display_name", "phone_number", "wallet_id", "pin_hash", "public_key",
		"private_key_enc", "balance", "created_at", "last_sync_at"}
}

func userRow(u *domain.Identity) *pgxmock.Rows {
	return pgxmock.NewRows(userColumnNames()).AddRow(
		u.ID, u.DisplayName, u.PhoneNumber, u.WalletID, u.PINHash,
		u.PublicKey, u.PrivateKeyEnc, u.Balance, u.CreatedAt, u.LastSyncAt,
	)
}

func TestUserRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewUserRepo(mock)
	u := newTestUser()

	mock.ExpectExec("INSERT INTO users").
		WithArgs(u.ID, u.DisplayName, u.PhoneNumber, u.WalletID, u.PINHash,
			u.PublicKey, u.PrivateKeyEnc, u.Balance, u.CreatedAt, u.LastSyncAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	assert.NoError(t, repo.Create(context.Background(), u))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_Create_UniqueViolation(t *testing.T) {
	tests := []struct {
		constraint   string
		wantWalletID bool
	}{
		{constraint: "users_phone_number_key"},
		{constraint: "users_wallet_id_key", wantWalletID: true},
	}

	for _, tt := range tests {
		t.Run(tt.constraint, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			mock.ExpectExec("INSERT INTO users").
				WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
					pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
				WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: tt.constraint})

			err = NewUserRepo(mock).Create(context.Background(), newTestUser())
			assert.ErrorIs(t, err, ports.ErrDuplicateKey)
			assert.Equal(t, tt.wantWalletID, errors.Is(err, ports.ErrDuplicateWalletID))
		})
	}
}

func TestUserRepo_GetByWalletID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewUserRepo(mock)
	u := newTestUser()

	mock.ExpectQuery("SELECT .+ FROM users WHERE wallet_id").
		WithArgs(u.WalletID).
		WillReturnRows(userRow(u))

	got, err := repo.GetByWalletID(context.Background(), u.WalletID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, u.PhoneNumber, got.PhoneNumber)
	assert.True(t, u.Balance.Equal(got.Balance))
	assert.Nil(t, got.LastSyncAt)
}

func TestUserRepo_GetByWalletID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT .+ FROM users WHERE wallet_id").
		WithArgs("W999999999999").
		WillReturnRows(pgxmock.NewRows(userColumnNames()))

	got, err := NewUserRepo(mock).GetByWalletID(context.Background(), "W999999999999")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestUserRepo_GetByWalletIDForUpdate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewUserRepo(mock)
	u := newTestUser()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM users WHERE wallet_id = \\$1 FOR UPDATE").
		WithArgs(u.WalletID).
		WillReturnRows(userRow(u))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	got, err := repo.GetByWalletIDForUpdate(context.Background(), tx, u.WalletID)
	require.NoError(t, err)
	assert.Equal(t, u.WalletID, got.WalletID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_Exists(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewUserRepo(mock)

	mock.ExpectQuery("SELECT EXISTS.+phone_number").
		WithArgs("+15550100001").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery("SELECT EXISTS.+wallet_id").
		WithArgs("W000000000001").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("SELECT EXISTS.+wallet_id").
		WithArgs("W000000000002").
		WillReturnError(errors.New("connection reset"))

	taken, err := repo.PhoneExists(context.Background(), "+15550100001")
	require.NoError(t, err)
	assert.True(t, taken)

	taken, err = repo.WalletIDExists(context.Background(), "W000000000001")
	require.NoError(t, err)
	assert.False(t, taken)

	_, err = repo.WalletIDExists(context.Background(), "W000000000002")
	assert.ErrorContains(t, err, "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_UpdateBalance(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewUserRepo(mock)
	balance := decimal.RequireFromString("60.00")

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE users SET balance").
		WithArgs(balance, "W000000000001").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE users SET balance").
		WithArgs(balance, "W000000000404").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	assert.NoError(t, repo.UpdateBalance(context.Background(), tx, "W000000000001", balance))
	assert.ErrorContains(t, repo.UpdateBalance(context.Background(), tx, "W000000000404", balance), "wallet not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_TouchSync(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	at := time.Now().UTC()
	mock.ExpectExec("UPDATE users SET last_sync_at").
		WithArgs(at, "W000000000001").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	assert.NoError(t, NewUserRepo(mock).TouchSync(context.Background(), "W000000000001", at))
	assert.NoError(t, mock.ExpectationsWereMet())
}

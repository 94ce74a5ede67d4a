package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"qr-wallet/internal/adapter/storage/memory"
	"qr-wallet/internal/core/domain"
	"qr-wallet/internal/core/ports/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestExpirySweeper_Sweep(t *testing.T) {
	store := memory.New()
	repo := memory.NewCashInRepo(store)
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Create(ctx, &domain.CashInTransaction{ID: "due", Status: domain.CashInStatusPending, ExpiresAt: now.Add(-time.Second)}))
	require.NoError(t, repo.Create(ctx, &domain.CashInTransaction{ID: "later", Status: domain.CashInStatusPending, ExpiresAt: now.Add(time.Hour)}))

	w := NewExpirySweeper(repo, nopAudit{}, time.Minute, newTestLogger())
	w.now = func() time.Time { return now }

	n, err := w.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	due, _ := repo.GetByID(ctx, "due")
	assert.Equal(t, domain.CashInStatusFailed, due.Status)
	later, _ := repo.GetByID(ctx, "later")
	assert.Equal(t, domain.CashInStatusPending, later.Status)

	n, err = w.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestExpirySweeper_StorageError(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockCashInRepository(ctrl)
	repo.EXPECT().ExpirePending(gomock.Any(), gomock.Any()).Return(nil, errors.New("db down"))

	_, err := NewExpirySweeper(repo, nopAudit{}, time.Minute, newTestLogger()).Sweep(context.Background())
	assertAppError(t, err, "SYS_001")
}

func TestExpirySweeper_RunStopsOnCancel(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockCashInRepository(ctrl)
	repo.EXPECT().ExpirePending(gomock.Any(), gomock.Any()).Return(nil, nil).AnyTimes()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewExpirySweeper(repo, nopAudit{}, 5*time.Millisecond, newTestLogger()).Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}

package repositories

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"wallet-ledger.backend/internal/domain/entities"
	domainerrors "wallet-ledger.backend/internal/domain/errors"
)

func TestBlockchainTxRepository_FullFlow(t *testing.T) {
	db := newTestDB(t)
	createBlockchainTables(t, db)
	repo := NewBlockchainTxRepository(db)
	ctx := context.Background()

	tx := &entities.BlockchainTransaction{
		Hash:          "0xaa",
		FromAddress:   "0xfrom",
		ToAddress:     "0xto",
		Currency:      entities.CurrencyETH,
		Value:         decimal.RequireFromString("1.5"),
		Fee:           decimal.RequireFromString("0.001"),
		BlockNumber:   100,
		Confirmations: 1,
	}
	require.NoError(t, repo.Create(ctx, tx))
	require.ErrorIs(t, repo.Create(ctx, tx), domainerrors.ErrConflict)

	got, err := repo.GetByHash(ctx, "0xaa")
	require.NoError(t, err)
	require.True(t, got.Value.Equal(decimal.RequireFromString("1.5")))
	require.Equal(t, 1, got.Confirmations)

	require.NoError(t, repo.UpdateConfirmations(ctx, "0xaa", 6))
	got, err = repo.GetByHash(ctx, "0xaa")
	require.NoError(t, err)
	require.Equal(t, 6, got.Confirmations)

	_, err = repo.GetByHash(ctx, "0xmissing")
	require.ErrorIs(t, err, domainerrors.ErrNotFound)
	require.ErrorIs(t, repo.UpdateConfirmations(ctx, "0xmissing", 1), domainerrors.ErrNotFound)
}

func TestPendingBlockchainTxRepository_FullFlow(t *testing.T) {
	db := newTestDB(t)
	createBlockchainTables(t, db)
	repo := NewPendingBlockchainTxRepository(db)
	ctx := context.Background()

	tx := &entities.PendingBlockchainTransaction{
		Hash:        "0xbb",
		FromAddress: "0xfrom",
		ToAddress:   "0xto",
		Currency:    entities.CurrencyBTC,
		Value:       decimal.RequireFromString("0.25"),
		Fee:         decimal.RequireFromString("0.0001"),
	}
	require.NoError(t, repo.Create(ctx, tx))
	require.ErrorIs(t, repo.Create(ctx, tx), domainerrors.ErrConflict)

	got, err := repo.GetByHash(ctx, "0xbb")
	require.NoError(t, err)
	require.True(t, got.Value.Equal(decimal.RequireFromString("0.25")))

	require.NoError(t, repo.DeleteByHash(ctx, "0xbb"))
	_, err = repo.GetByHash(ctx, "0xbb")
	require.ErrorIs(t, err, domainerrors.ErrNotFound)

	// deleting an already-removed hash is a no-op
	require.NoError(t, repo.DeleteByHash(ctx, "0xbb"))
}

func TestStrangeBlockchainTxRepository_CreateAndList(t *testing.T) {
	db := newTestDB(t)
	createBlockchainTables(t, db)
	repo := NewStrangeBlockchainTxRepository(db)
	ctx := context.Background()

	strange := &entities.StrangeBlockchainTransaction{
		BlockchainTransaction: entities.BlockchainTransaction{
			Hash:        "0xcc",
			FromAddress: "0xunknown",
			ToAddress:   "0xours",
			Currency:    entities.CurrencyETH,
			Value:       decimal.RequireFromString("9"),
			Fee:         decimal.Zero,
			BlockNumber: 5,
		},
		Commentary: "value mismatch against pending withdrawal",
	}
	require.NoError(t, repo.Create(ctx, strange))

	// the same hash may be recorded more than once with different commentary
	strange.Commentary = "observed again with different value"
	require.NoError(t, repo.Create(ctx, strange))

	list, err := repo.List(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "0xcc", list[0].Hash)
}

func TestSeenHashRepository_IdempotencyGuard(t *testing.T) {
	db := newTestDB(t)
	createBlockchainTables(t, db)
	repo := NewSeenHashRepository(db)
	ctx := context.Background()

	seen := &entities.SeenHash{Hash: "0xdd", Currency: entities.CurrencyETH, BlockNumber: 10}
	require.NoError(t, repo.Create(ctx, seen))

	// the second writer loses and must treat the observation as handled
	require.ErrorIs(t, repo.Create(ctx, seen), domainerrors.ErrConflict)

	// the same hash under another currency is a distinct observation
	require.NoError(t, repo.Create(ctx, &entities.SeenHash{Hash: "0xdd", Currency: entities.CurrencyBTC}))

	ok, err := repo.Exists(ctx, "0xdd", entities.CurrencyETH)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.Exists(ctx, "0xee", entities.CurrencyETH)
	require.NoError(t, err)
	require.False(t, ok)
}

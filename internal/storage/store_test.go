package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAddress = "0x1234567890AbcdEF1234567890aBcdef12345678"

func newAttempt(chainID uint64, status Status) *Attempt {
	return &Attempt{
		ChainID:         chainID,
		Network:         "polygon",
		Address:         testAddress,
		ContractName:    "Token",
		SourcePath:      "src/Token.sol",
		CompilerVersion: "v0.8.20+commit.a1b2c3d4",
		Status:          status,
	}
}

// testAttemptStore exercises the AttemptStore contract against any backend.
func testAttemptStore(t *testing.T, store Store) {
	ctx := context.Background()
	require.NoError(t, store.Migrate(ctx))
	// Migrate is idempotent
	require.NoError(t, store.Migrate(ctx))

	t.Run("CreateAndGet", func(t *testing.T) {
		a := newAttempt(137, StatusPending)
		require.NoError(t, store.CreateAttempt(ctx, a))
		require.NotEmpty(t, a.ID)
		assert.False(t, a.CreatedAt.IsZero())

		got, err := store.GetAttempt(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, a.ID, got.ID)
		assert.Equal(t, uint64(137), got.ChainID)
		assert.Equal(t, "polygon", got.Network)
		assert.Equal(t, testAddress, got.Address)
		assert.Equal(t, "Token", got.ContractName)
		assert.Equal(t, "src/Token.sol", got.SourcePath)
		assert.Equal(t, StatusPending, got.Status)
		assert.WithinDuration(t, a.CreatedAt, got.CreatedAt, time.Millisecond)
	})

	t.Run("Update", func(t *testing.T) {
		a := newAttempt(1, StatusPending)
		require.NoError(t, store.CreateAttempt(ctx, a))

		a.Status = StatusVerified
		a.GUID = "abc123guid"
		a.Message = "Pass - Verified"
		a.APIURL = "https://api.example.com/api"
		a.BrowserURL = "https://example.com/address/" + testAddress + "#code"
		require.NoError(t, store.UpdateAttempt(ctx, a))

		got, err := store.GetAttempt(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusVerified, got.Status)
		assert.Equal(t, "abc123guid", got.GUID)
		assert.Equal(t, "Pass - Verified", got.Message)
		assert.Equal(t, a.BrowserURL, got.BrowserURL)
		assert.False(t, got.UpdatedAt.Before(got.CreatedAt))
	})

	t.Run("UpdateMissing", func(t *testing.T) {
		a := newAttempt(1, StatusError)
		a.ID = generateID()
		assert.ErrorIs(t, store.UpdateAttempt(ctx, a), ErrNotFound)
	})

	t.Run("GetMissing", func(t *testing.T) {
		_, err := store.GetAttempt(ctx, generateID())
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = store.GetAttempt(ctx, "not-a-uuid")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("ListAndFilter", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			require.NoError(t, store.CreateAttempt(ctx, newAttempt(56, StatusRejected)))
		}

		res, err := store.ListAttempts(ctx, AttemptFilter{ChainID: 56}, PaginationParams{Limit: 10})
		require.NoError(t, err)
		assert.Len(t, res.Data, 3)
		assert.False(t, res.HasMore)

		for i := 1; i < len(res.Data); i++ {
			assert.False(t, res.Data[i].CreatedAt.After(res.Data[i-1].CreatedAt), "newest first")
		}

		res, err = store.ListAttempts(ctx, AttemptFilter{Status: StatusVerified}, PaginationParams{})
		require.NoError(t, err)
		for _, a := range res.Data {
			assert.Equal(t, StatusVerified, a.Status)
		}

		// address match is case-insensitive
		res, err = store.ListAttempts(ctx, AttemptFilter{ChainID: 56, Address: "0x1234567890abcdef1234567890abcdef12345678"}, PaginationParams{})
		require.NoError(t, err)
		assert.Len(t, res.Data, 3)
	})

	t.Run("Pagination", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			require.NoError(t, store.CreateAttempt(ctx, newAttempt(10, StatusVerified)))
		}

		seen := map[string]bool{}
		cursor := ""
		pages := 0
		for {
			res, err := store.ListAttempts(ctx, AttemptFilter{ChainID: 10}, PaginationParams{Limit: 2, Cursor: cursor})
			require.NoError(t, err)
			pages++
			for _, a := range res.Data {
				assert.False(t, seen[a.ID], "duplicate %s", a.ID)
				seen[a.ID] = true
			}
			if !res.HasMore {
				break
			}
			cursor = res.NextCursor
		}
		assert.Len(t, seen, 5)
		assert.Equal(t, 3, pages)

		_, err := store.ListAttempts(ctx, AttemptFilter{}, PaginationParams{Cursor: "x"})
		assert.ErrorIs(t, err, ErrInvalidCursor)
	})
}

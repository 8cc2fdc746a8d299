package memstore

import (
	"context"
	"testing"
	"time"

	"carelink-chat/internal/domain/outbox"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutbox_PendingOrderAndPurge(t *testing.T) {
	ctx := context.Background()
	db := New()
	repo := db.Outbox()
	at := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)

	first := outbox.New("message.new", "conversation", "c1", []byte(`{}`), at)
	second := outbox.New("message.new", "conversation", "c1", []byte(`{}`), at)
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))

	pending, err := repo.GetPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, first.ID, pending[0].ID)
	assert.Less(t, pending[0].Seq, pending[1].Seq)

	require.NoError(t, repo.MarkProcessed(ctx, first.ID, at.Add(time.Minute)))
	require.NoError(t, repo.MarkFailed(ctx, second.ID, "unroutable"))

	n, err := repo.PurgeCompleted(ctx, at)
	require.NoError(t, err)
	assert.Zero(t, n, "processed after the cutoff")

	n, err = repo.PurgeCompleted(ctx, at.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	left := db.OutboxEvents()
	require.Len(t, left, 1)
	assert.Equal(t, outbox.StatusFailed, left[0].Status)
}

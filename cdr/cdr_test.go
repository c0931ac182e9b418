package cdr

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreOrdersNewestFirst(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Save(ctx, Record{CallID: uint32(1024 + i), EndedAt: base.Add(time.Duration(i) * time.Minute)}))
	}

	all, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, uint32(1026), all[0].CallID)
	assert.Equal(t, uint32(1024), all[2].CallID)
	assert.NotEmpty(t, all[0].ID)

	two, err := s.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, two, 2)
}

func TestMemoryStoreRejectsIncompleteRecords(t *testing.T) {
	s := NewMemoryStore()
	assert.ErrorIs(t, s.Save(context.Background(), Record{EndedAt: time.Now()}), ErrInvalidRecord)
	assert.ErrorIs(t, s.Save(context.Background(), Record{CallID: 1}), ErrInvalidRecord)
}

func TestRecordDuration(t *testing.T) {
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	r := Record{StartedAt: start, EndedAt: start.Add(time.Minute)}
	assert.Zero(t, r.Duration())

	r.ConnectedAt = start.Add(10 * time.Second)
	assert.Equal(t, 50*time.Second, r.Duration())
}

func TestPoolConfigDefaults(t *testing.T) {
	c := PoolConfig{MaxOpenConns: 9}.withDefaults()
	assert.Equal(t, 9, c.MaxOpenConns)
	assert.Equal(t, 2, c.MaxIdleConns)
	assert.Equal(t, 5*time.Second, c.PingTimeout)
}

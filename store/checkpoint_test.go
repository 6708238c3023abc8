package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repricer/models"
)

// ===================== KV Mock =========================
type mockKV struct {
	data map[string][]byte
}

func newMockKV() *mockKV {
	return &mockKV{data: map[string][]byte{}}
}

func (m *mockKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, ok := m.data[key]
	return value, ok, nil
}

func (m *mockKV) Set(ctx context.Context, key string, value []byte) error {
	m.data[key] = value
	return nil
}

func (m *mockKV) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return m.Set(ctx, key, value)
}

func (m *mockKV) TTL(ctx context.Context, key string) (time.Duration, error) { return 0, nil }

func (m *mockKV) Close() error { return nil }

var testAccount = models.Account{APIKey: "test-api-key-0001"}

func TestCheckpointRoundTrip(t *testing.T) {
	kv := newMockKV()
	checkpoints := NewCheckpointStore(kv, "repricer")
	ctx := context.Background()

	_, found, err := checkpoints.LastRun(ctx, testAccount, models.JobTypeListItems)
	require.NoError(t, err)
	assert.False(t, found)

	ran := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	require.NoError(t, checkpoints.SetLastRun(ctx, testAccount, models.JobTypeListItems, ran))

	got, found, err := checkpoints.LastRun(ctx, testAccount, models.JobTypeListItems)
	require.NoError(t, err)
	assert.True(t, found)
	assert.True(t, got.Equal(ran))

	// Stored under the documented key scheme
	assert.Contains(t, kv.data, "repricer:test-api-key-0001:list-items:last-check")
}

func TestCheckpointsAreScopedPerJobType(t *testing.T) {
	kv := newMockKV()
	checkpoints := NewCheckpointStore(kv, "repricer")
	ctx := context.Background()

	ran := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	require.NoError(t, checkpoints.SetLastRun(ctx, testAccount, models.JobTypeListItems, ran))

	_, found, err := checkpoints.LastRun(ctx, testAccount, models.JobTypePriceEdits)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCorruptCheckpointTreatedAsAbsent(t *testing.T) {
	kv := newMockKV()
	kv.data["repricer:test-api-key-0001:list-items:last-check"] = []byte("not-a-timestamp")
	checkpoints := NewCheckpointStore(kv, "repricer")

	_, found, err := checkpoints.LastRun(context.Background(), testAccount, models.JobTypeListItems)
	require.NoError(t, err)
	assert.False(t, found)
}

package prefs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swrfmods/pkg/database"
	"swrfmods/pkg/models"
)

func exerciseStorage(t *testing.T, s Storage) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := s.Get(ctx, KeyLastVisitedEra)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, DefaultEra, LastVisitedEra(ctx, s))

	require.NoError(t, SetLastVisitedEra(ctx, s, "Sequel"))
	assert.Equal(t, "sequel", LastVisitedEra(ctx, s))

	at := time.UnixMilli(1_700_000_000_123)
	require.NoError(t, SetLastSubmit(ctx, s, at))
	got, ok := LastSubmit(ctx, s)
	require.True(t, ok)
	assert.True(t, at.Equal(got))

	raw, ok, err := s.Get(ctx, KeyLastSubmit)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1700000000123", raw)

	// stores loaded before each other's writes still keep both ids
	a, err := LoadSavedStore(ctx, s)
	require.NoError(t, err)
	b, err := LoadSavedStore(ctx, s)
	require.NoError(t, err)
	_, err = a.Toggle(ctx, "1")
	require.NoError(t, err)
	_, err = b.Toggle(ctx, "2")
	require.NoError(t, err)
	raw, _, err = s.Get(ctx, KeySavedMods)
	require.NoError(t, err)
	assert.JSONEq(t, `["1","2"]`, raw)

	removed, err := a.Remove(ctx, "2")
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = b.Remove(ctx, "2")
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Equal(t, []models.ModID{"1"}, b.IDs())

	failed := errors.New("abort")
	err = Update(ctx, s, KeySavedMods, func(string, bool) (string, error) { return "", failed })
	assert.ErrorIs(t, err, failed)
	raw, _, err = s.Get(ctx, KeySavedMods)
	require.NoError(t, err)
	assert.JSONEq(t, `["1"]`, raw)
}

func TestMemoryStorage(t *testing.T) {
	exerciseStorage(t, NewMemory())
}

func TestMemoryBackendIsolatesVisitors(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()
	require.NoError(t, b.For("a").Set(ctx, KeyLastVisitedEra, "prequel"))

	assert.Equal(t, "prequel", LastVisitedEra(ctx, b.For("a")))
	assert.Equal(t, DefaultEra, LastVisitedEra(ctx, b.For("b")))
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "local.json")
	exerciseStorage(t, NewFileStore(path))

	// a second handle on the same file sees the writes
	assert.Equal(t, "sequel", LastVisitedEra(context.Background(), NewFileStore(path)))
}

func TestFileStoreCorruptFileReadsEmpty(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "local.json")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o600))

	fs := NewFileStore(path)
	assert.Equal(t, DefaultEra, LastVisitedEra(ctx, fs))
	require.NoError(t, fs.Set(ctx, KeyLastVisitedEra, "other"))
	assert.Equal(t, "other", LastVisitedEra(ctx, fs))
}

func TestLastSubmitIgnoresGarbage(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	require.NoError(t, mem.Set(ctx, KeyLastSubmit, "yesterday"))
	_, ok := LastSubmit(ctx, mem)
	assert.False(t, ok)
}

func TestRepoStorage(t *testing.T) {
	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{Path: filepath.Join(t.TempDir(), "prefs.db")})
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, database.Migrate(ctx, db))

	repo := NewRepo(db)
	exerciseStorage(t, repo.For("visitor-1"))

	// upsert keeps one row per key
	require.NoError(t, SetLastVisitedEra(ctx, repo.For("visitor-1"), "original"))
	var n int
	require.NoError(t, db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM preferences WHERE visitor_id = ? AND pref_key = ?`,
		"visitor-1", KeyLastVisitedEra).Scan(&n))
	assert.Equal(t, 1, n)
	assert.Equal(t, DefaultEra, LastVisitedEra(ctx, repo.For("visitor-2")))
}

func TestRedisBackend(t *testing.T) {
	addr := os.Getenv("SWRF_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("SWRF_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}

	prefix := "test-prefs-" + time.Now().Format("150405.000000") + ":"
	b := NewRedisBackendWithPrefix(client, prefix)
	t.Cleanup(func() {
		keys, _ := client.Keys(context.Background(), prefix+"*").Result()
		if len(keys) > 0 {
			client.Del(context.Background(), keys...)
		}
	})
	exerciseStorage(t, b.For("visitor-1"))
}

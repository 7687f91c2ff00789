package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testContract exercises the behaviour every backend must share.
func testContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, "seats")
	assert.ErrorIs(t, err, ErrNotFound, "absent key must return the sentinel")

	require.NoError(t, s.Set(ctx, "seats", `[{"number":1,"status":"free"}]`))
	value, err := s.Get(ctx, "seats")
	require.NoError(t, err)
	assert.Equal(t, `[{"number":1,"status":"free"}]`, value)

	require.NoError(t, s.Set(ctx, "seats", "[]"))
	value, err = s.Get(ctx, "seats")
	require.NoError(t, err)
	assert.Equal(t, "[]", value, "set must overwrite")

	require.NoError(t, s.Set(ctx, "session:ab12:selectedSeats", "[11,13]"))
	values, err := GetMany(ctx, s, "seats", "session:ab12:selectedSeats", "totalPrice")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"seats": "[]", "session:ab12:selectedSeats": "[11,13]"}, values)

	require.NoError(t, s.Remove(ctx, "seats"))
	_, err = s.Get(ctx, "seats")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, s.Remove(ctx, "seats"), "removing an absent key is not an error")

	require.NoError(t, RemoveMany(ctx, s, "session:ab12:selectedSeats", "never-set"))
	_, err = s.Get(ctx, "session:ab12:selectedSeats")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_Contract(t *testing.T) {
	s := NewMemory()
	testContract(t, s)
	assert.Equal(t, 0, s.Len())
}

func TestMemory_Closed(t *testing.T) {
	s := NewMemory()
	require.NoError(t, s.Close())

	_, err := s.Get(context.Background(), "k")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.Set(context.Background(), "k", "v"), ErrClosed)
}

func TestFile_Contract(t *testing.T) {
	s, err := NewFile(filepath.Join(t.TempDir(), "state"))
	require.NoError(t, err)
	testContract(t, s)
}

func TestFile_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first, err := NewFile(dir)
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, "session:x/../y:seats", "[1]"))

	second, err := NewFile(dir)
	require.NoError(t, err)
	value, err := second.Get(ctx, "session:x/../y:seats")
	require.NoError(t, err)
	assert.Equal(t, "[1]", value)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp files may be left behind")
}

func TestFile_RequiresDir(t *testing.T) {
	_, err := NewFile("")
	assert.Error(t, err)
}

func TestRedis_Contract(t *testing.T) {
	mr := miniredis.RunT(t)

	s, err := NewRedis(context.Background(), &redis.Options{Addr: mr.Addr()}, "test:")
	require.NoError(t, err)
	defer s.Close()

	testContract(t, s)

	require.NoError(t, s.Set(context.Background(), "seats", "[]"))
	assert.True(t, mr.Exists("test:seats"), "keys must carry the prefix")
}

func TestRedis_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedis(context.Background(), &redis.Options{Addr: addr}, "")
	assert.Error(t, err)
}

func TestSQLite_Contract(t *testing.T) {
	s, err := NewSQL(context.Background(), SQLite, filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	defer s.Close()

	testContract(t, s)
	assert.Equal(t, "sqlite", s.Dialect().Name)
}

func TestPrefixed_Contract(t *testing.T) {
	base := NewMemory()
	p := WithPrefix(base, "session:ab12:")
	testContract(t, p)

	require.NoError(t, p.Set(context.Background(), "seats", "[]"))
	value, err := base.Get(context.Background(), "session:ab12:seats")
	require.NoError(t, err)
	assert.Equal(t, "[]", value)

	require.NoError(t, p.Close())
	_, err = base.Get(context.Background(), "session:ab12:seats")
	assert.NoError(t, err, "closing a prefixed view must not close the base store")
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	dir := t.TempDir()

	tests := []struct {
		name string
		dsn  string
		want any
	}{
		{"empty", "", &Memory{}},
		{"memory", "memory://", &Memory{}},
		{"bare path", filepath.Join(dir, "bare"), &File{}},
		{"file url", "file://" + filepath.Join(dir, "files"), &File{}},
		{"sqlite", "sqlite://" + filepath.Join(dir, "open.db"), &SQL{}},
		{"redis", "redis://" + mr.Addr() + "/0", &Redis{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Open(ctx, tt.dsn)
			require.NoError(t, err)
			defer s.Close()
			assert.IsType(t, tt.want, s)
		})
	}
}

func TestOpen_Unsupported(t *testing.T) {
	_, err := Open(context.Background(), "etcd://localhost:2379")
	assert.ErrorIs(t, err, ErrUnsupportedDSN)
}

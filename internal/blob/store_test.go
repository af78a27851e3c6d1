package blob

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Both implementations must behave identically, so they share one suite.
func TestStoreImplementations(t *testing.T) {
	stores := []struct {
		name string
		open func(t *testing.T) Store
	}{
		{
			name: "memory",
			open: func(t *testing.T) Store {
				return NewMemory()
			},
		},
		{
			name: "sqlite in-memory",
			open: func(t *testing.T) Store {
				s, err := OpenSQLite(":memory:")
				require.NoError(t, err)
				t.Cleanup(func() { _ = s.Close() })
				return s
			},
		},
		{
			name: "sqlite file",
			open: func(t *testing.T) Store {
				s, err := OpenSQLite(filepath.Join(t.TempDir(), "blobs.db"))
				require.NoError(t, err)
				t.Cleanup(func() { _ = s.Close() })
				return s
			},
		},
	}

	for _, impl := range stores {
		t.Run(impl.name, func(t *testing.T) {
			t.Run("read of missing key returns ErrNotFound", func(t *testing.T) {
				s := impl.open(t)
				_, err := s.Read("missing")
				assert.ErrorIs(t, err, ErrNotFound)
			})

			t.Run("write then read round-trips", func(t *testing.T) {
				s := impl.open(t)
				require.NoError(t, s.Write("doc", []byte("v1")))

				data, err := s.Read("doc")
				require.NoError(t, err)
				assert.Equal(t, []byte("v1"), data)
			})

			t.Run("write replaces the whole document", func(t *testing.T) {
				s := impl.open(t)
				require.NoError(t, s.Write("doc", []byte("first revision")))
				require.NoError(t, s.Write("doc", []byte("v2")))

				data, err := s.Read("doc")
				require.NoError(t, err)
				assert.Equal(t, []byte("v2"), data)
			})

			t.Run("delete removes and is idempotent", func(t *testing.T) {
				s := impl.open(t)
				require.NoError(t, s.Write("doc", []byte("v1")))
				require.NoError(t, s.Delete("doc"))

				_, err := s.Read("doc")
				assert.ErrorIs(t, err, ErrNotFound)
				assert.NoError(t, s.Delete("doc"))
			})

			t.Run("keys filters by prefix", func(t *testing.T) {
				s := impl.open(t)
				require.NoError(t, s.Write("mail/a1/inbox", []byte("1")))
				require.NoError(t, s.Write("mail/a1/sent", []byte("2")))
				require.NoError(t, s.Write("draft/d1", []byte("3")))

				keys, err := s.Keys("mail/")
				require.NoError(t, err)
				assert.ElementsMatch(t, []string{"mail/a1/inbox", "mail/a1/sent"}, keys)

				all, err := s.Keys("")
				require.NoError(t, err)
				assert.Len(t, all, 3)
			})
		})
	}
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blobs.db")

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.Write("doc", []byte("survives")))
	require.NoError(t, s.Close())

	reopened, err := OpenSQLite(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	data, err := reopened.Read("doc")
	require.NoError(t, err)
	assert.Equal(t, []byte("survives"), data)
}

func TestMemoryStoreFailWrites(t *testing.T) {
	s := NewMemory()
	boom := errors.New("disk full")
	s.FailWrites = boom

	assert.ErrorIs(t, s.Write("doc", []byte("v1")), boom)

	s.FailWrites = nil
	assert.NoError(t, s.Write("doc", []byte("v1")))
}

package account

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, string) {
	path := filepath.Join(t.TempDir(), "nested", "accounts.json")
	return NewStore(path, zerolog.New(nil).Level(zerolog.Disabled)), path
}

func TestStore_SaveIsIdempotent(t *testing.T) {
	store, path := newTestStore(t)
	acct := Account{Channel: "ibm_cloud", Token: "key-1", Instance: "crn:test"}

	require.NoError(t, store.Save("", acct, false))
	require.NoError(t, store.Save("", acct, false), "saving the same account twice must succeed")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := store.Load(DefaultName)
	require.NoError(t, err)
	assert.Equal(t, acct, loaded)
}

func TestStore_SaveConflicts(t *testing.T) {
	store, _ := newTestStore(t)
	first := Account{Channel: "ibm_cloud", Token: "key-1"}
	second := Account{Channel: "ibm_cloud", Token: "key-2"}

	require.NoError(t, store.Save("work", first, false))
	assert.ErrorIs(t, store.Save("work", second, false), ErrAccountExists)

	loaded, err := store.Load("work")
	require.NoError(t, err)
	assert.Equal(t, "key-1", loaded.Token)

	require.NoError(t, store.Save("work", second, true))
	loaded, err = store.Load("work")
	require.NoError(t, err)
	assert.Equal(t, "key-2", loaded.Token)
}

func TestStore_LoadAndNames(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Load("missing")
	assert.ErrorIs(t, err, ErrAccountNotFound)

	names, err := store.Names()
	require.NoError(t, err)
	assert.Empty(t, names)

	require.NoError(t, store.Save("b", Account{Channel: "ibm_quantum", Token: "t"}, false))
	require.NoError(t, store.Save("a", Account{Channel: "ibm_cloud", Token: "t"}, false))
	names, err = store.Names()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)
}

func TestStore_Validation(t *testing.T) {
	store, _ := newTestStore(t)
	assert.ErrorIs(t, store.Save("x", Account{Channel: "ibm_cloud"}, false), ErrInvalidAccount)
	assert.ErrorIs(t, store.Save("x", Account{Token: "t"}, false), ErrInvalidAccount)
}

func TestStore_CorruptFile(t *testing.T) {
	store, path := newTestStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := store.Load("any")
	assert.Error(t, err)
}

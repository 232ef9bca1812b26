package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalBackendRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "models")

	b, err := NewLocalBackend(dir)
	require.NoError(t, err)

	// directory is created on demand
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	require.NoError(t, b.Put(ctx, "Milk_model.json", []byte(`{"a":1}`)))

	data, found, err := b.Get(ctx, "Milk_model.json")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `{"a":1}`, string(data))

	// overwrite replaces the previous content
	require.NoError(t, b.Put(ctx, "Milk_model.json", []byte(`{"a":2}`)))
	data, _, err = b.Get(ctx, "Milk_model.json")
	require.NoError(t, err)
	assert.Equal(t, `{"a":2}`, string(data))

	exists, err := b.Exists(ctx, "Milk_model.json")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestLocalBackendMissingEntries(t *testing.T) {
	ctx := context.Background()
	b, err := NewLocalBackend(t.TempDir())
	require.NoError(t, err)

	data, found, err := b.Get(ctx, "absent.json")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, data)

	exists, err := b.Exists(ctx, "absent.json")
	require.NoError(t, err)
	assert.False(t, exists)

	// deleting a missing entry is a no-op
	assert.NoError(t, b.Delete(ctx, "absent.json"))
}

func TestLocalBackendListFiltersSuffixAndTempFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	b, err := NewLocalBackend(dir)
	require.NoError(t, err)

	require.NoError(t, b.Put(ctx, "Milk_model.json", []byte("m")))
	require.NoError(t, b.Put(ctx, "Milk_metadata.json", []byte("md")))
	require.NoError(t, b.Put(ctx, "Butter_model.json", []byte("b")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".Ghee_model.json.tmp-123"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested_model.json"), 0o755))

	objects, err := b.List(ctx, "_model.json")
	require.NoError(t, err)

	keys := make([]string, 0, len(objects))
	for _, o := range objects {
		keys = append(keys, o.Key)
	}
	assert.Equal(t, []string{"Butter_model.json", "Milk_model.json"}, keys)
	assert.Equal(t, int64(1), objects[0].Size)
}

func TestLocalBackendRejectsPathNames(t *testing.T) {
	ctx := context.Background()
	b, err := NewLocalBackend(t.TempDir())
	require.NoError(t, err)

	assert.Error(t, b.Put(ctx, "../escape.json", []byte("x")))
	assert.Error(t, b.Put(ctx, "", []byte("x")))
	_, _, err = b.Get(ctx, "a/b.json")
	assert.Error(t, err)
}

func TestNewSelectsBackend(t *testing.T) {
	dir := t.TempDir()

	b, err := New(context.Background(), configFor("local"), dir)
	require.NoError(t, err)
	_, ok := b.(*LocalBackend)
	assert.True(t, ok)

	_, err = New(context.Background(), configFor("ftp"), dir)
	assert.Error(t, err)

	// remote backends require an endpoint
	_, err = New(context.Background(), configFor("s3"), dir)
	assert.Error(t, err)

	_, err = New(context.Background(), configFor("sevalla"), dir)
	assert.Error(t, err)
}

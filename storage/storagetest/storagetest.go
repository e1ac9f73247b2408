// Package storagetest contains the behaviour every storage.Storage implementation is
// expected to follow.
package storagetest

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/indigo-web/formdata/storage"
	"github.com/stretchr/testify/require"
)

// Run tests the store. The store must be empty.
func Run(t *testing.T, store storage.Storage) {
	ctx := context.Background()

	t.Run("put and open", func(t *testing.T) {
		const data = "Hello, world!"
		key := storage.NewKey()
		meta := storage.Meta{Filename: "hello.txt", MediaType: "text/plain"}

		obj, err := store.Put(ctx, key, strings.NewReader(data), meta)
		require.NoError(t, err)
		require.Equal(t, key, obj.Key)
		require.EqualValues(t, len(data), obj.Size)
		require.Equal(t, "hello.txt", obj.Filename)
		require.Equal(t, "text/plain", obj.MediaType)
		require.Len(t, obj.Sum, 64)

		require.Equal(t, data, read(t, store, key))
	})

	t.Run("empty object", func(t *testing.T) {
		key := storage.NewKey()
		obj, err := store.Put(ctx, key, strings.NewReader(""), storage.Meta{})
		require.NoError(t, err)
		require.Zero(t, obj.Size)
		require.Empty(t, read(t, store, key))
	})

	t.Run("big object", func(t *testing.T) {
		data := strings.Repeat("abcdefgh", 300*1024)
		key := storage.NewKey()
		obj, err := store.Put(ctx, key, strings.NewReader(data), storage.Meta{})
		require.NoError(t, err)
		require.EqualValues(t, len(data), obj.Size)
		require.Equal(t, data, read(t, store, key))
	})

	t.Run("overwrite", func(t *testing.T) {
		key := storage.NewKey()
		_, err := store.Put(ctx, key, strings.NewReader("first"), storage.Meta{})
		require.NoError(t, err)
		_, err = store.Put(ctx, key, strings.NewReader("second"), storage.Meta{})
		require.NoError(t, err)
		require.Equal(t, "second", read(t, store, key))
	})

	t.Run("missing", func(t *testing.T) {
		_, err := store.Open(ctx, storage.NewKey())
		require.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		a, b := storage.NewKey(), storage.NewKey()
		for _, key := range []string{a, b} {
			_, err := store.Put(ctx, key, strings.NewReader(key), storage.Meta{})
			require.NoError(t, err)
		}

		require.NoError(t, store.Delete(ctx, a, storage.NewKey()))
		_, err := store.Open(ctx, a)
		require.ErrorIs(t, err, storage.ErrNotFound)
		require.Equal(t, b, read(t, store, b))
	})

	t.Run("failing reader", func(t *testing.T) {
		wantErr := errors.New("connection reset")
		key := storage.NewKey()
		r := io.MultiReader(strings.NewReader("partial"), &failingReader{wantErr})

		_, err := store.Put(ctx, key, r, storage.Meta{})
		require.ErrorIs(t, err, wantErr)

		_, err = store.Open(ctx, key)
		require.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func read(t *testing.T, store storage.Storage, key string) string {
	rc, err := store.Open(context.Background(), key)
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)

	return string(data)
}

type failingReader struct {
	err error
}

func (f *failingReader) Read([]byte) (int, error) {
	return 0, f.err
}

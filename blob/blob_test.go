package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

func TestCleanRef(t *testing.T) {
	tests := []struct {
		ref     string
		want    string
		wantErr bool
	}{
		{"notes/week1.pdf", "notes/week1.pdf", false},
		{"/notes/./week1.pdf", "notes/week1.pdf", false},
		{`notes\week1.pdf`, "notes/week1.pdf", false},
		{"notes/../week1.pdf", "week1.pdf", false},
		{"", "", true},
		{"   ", "", true},
		{"..", "", true},
		{"../etc/passwd", "", true},
		{"notes/../../etc/passwd", "", true},
		{"/", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			got, err := CleanRef(tt.ref)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRef)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFSStore(t *testing.T) {
	ctx := context.Background()
	store, err := NewFSStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	t.Run("put then open", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "owner1/notes.md", strings.NewReader("# Notes")))

		r, err := store.Open(ctx, "owner1/notes.md")
		require.NoError(t, err)
		defer r.Close()
		data, err := io.ReadAll(r)
		require.NoError(t, err)
		assert.Equal(t, "# Notes", string(data))
	})

	t.Run("put existing", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "dup.txt", strings.NewReader("a")))
		err := store.Put(ctx, "dup.txt", strings.NewReader("b"))
		assert.ErrorIs(t, err, ErrExists)

		data, err := os.ReadFile(filepath.Join(store.Root(), "dup.txt"))
		require.NoError(t, err)
		assert.Equal(t, "a", string(data))
	})

	t.Run("open missing", func(t *testing.T) {
		_, err := store.Open(ctx, "missing.pdf")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("escaping ref", func(t *testing.T) {
		_, err := store.Open(ctx, "../outside.txt")
		assert.ErrorIs(t, err, ErrInvalidRef)
		err = store.Put(ctx, "../outside.txt", strings.NewReader("x"))
		assert.ErrorIs(t, err, ErrInvalidRef)
	})

	t.Run("canceled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := store.Open(cctx, "owner1/notes.md")
		assert.ErrorIs(t, err, context.Canceled)
		err = store.Put(cctx, "never.txt", strings.NewReader("x"))
		assert.ErrorIs(t, err, context.Canceled)
		_, statErr := os.Stat(filepath.Join(store.Root(), "never.txt"))
		assert.True(t, errors.Is(statErr, os.ErrNotExist))
	})

	t.Run("no temp files left", func(t *testing.T) {
		entries, err := os.ReadDir(store.Root())
		require.NoError(t, err)
		for _, e := range entries {
			assert.False(t, strings.HasPrefix(e.Name(), ".upload-"), e.Name())
		}
	})
}

func TestNewFSStoreEmptyRoot(t *testing.T) {
	_, err := NewFSStore("")
	assert.ErrorIs(t, err, ErrInvalidRef)
}

func TestMapGCSError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"object missing", storage.ErrObjectNotExist, ErrNotFound},
		{"precondition", &googleapi.Error{Code: http.StatusPreconditionFailed}, ErrExists},
		{"not found status", fmt.Errorf("wrapped: %w", &googleapi.Error{Code: http.StatusNotFound}), ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, mapGCSError("doc.pdf", tt.err), tt.want)
		})
	}

	t.Run("other errors pass through", func(t *testing.T) {
		cause := &googleapi.Error{Code: http.StatusServiceUnavailable}
		err := mapGCSError("doc.pdf", cause)
		assert.ErrorIs(t, err, cause)
		assert.NotErrorIs(t, err, ErrNotFound)
	})
}

func TestNewGCSStoreRequiresBucket(t *testing.T) {
	_, err := NewGCSStore(context.Background(), "")
	assert.Error(t, err)
}

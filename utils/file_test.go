package utils

import (
	"bytes"
	"context"
	"mime/multipart"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func formFile(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("image", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(&buf, w.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form.File["image"][0]
}

func TestLocalStorePut(t *testing.T) {
	root := filepath.Join(t.TempDir(), "uploads")
	store, err := NewLocalStore(root, "/uploads")
	require.NoError(t, err)

	url, err := store.Put(context.Background(), "tournaments/abc/banner.png", formFile(t, "banner.png", []byte("png-bytes")))
	require.NoError(t, err)
	assert.Equal(t, "/uploads/tournaments/abc/banner.png", url)

	got, err := os.ReadFile(filepath.Join(root, "tournaments", "abc", "banner.png"))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(got))
}

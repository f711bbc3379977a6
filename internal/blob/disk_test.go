package blob

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDiskPutDelete(t *testing.T) {
	ctx := context.Background()
	d, err := NewDisk(t.TempDir())
	require.NoError(t, err)

	key := NewKey("posts", ".png")
	require.True(t, strings.HasPrefix(key, "posts/"))
	require.True(t, strings.HasSuffix(key, ".png"))

	require.NoError(t, d.Put(ctx, key, "image/png", strings.NewReader("data"), 4))
	b, err := os.ReadFile(filepath.Join(d.Root, filepath.FromSlash(key)))
	require.NoError(t, err)
	require.Equal(t, "data", string(b))

	require.NoError(t, d.Delete(ctx, key))
	_, err = os.Stat(filepath.Join(d.Root, filepath.FromSlash(key)))
	require.True(t, os.IsNotExist(err))

	// deleting twice is fine
	require.NoError(t, d.Delete(ctx, key))
}

func TestDiskRejectsEscapingKeys(t *testing.T) {
	d, err := NewDisk(t.TempDir())
	require.NoError(t, err)
	for _, key := range []string{"../x.png", "/etc/passwd", ""} {
		require.ErrorIs(t, d.Put(context.Background(), key, "", strings.NewReader(""), 0), ErrInvalidKey, key)
	}
}

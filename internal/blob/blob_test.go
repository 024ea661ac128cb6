package blob

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorePutAndDelete(t *testing.T) {
	dir := t.TempDir()
	s := NewLocalStore(dir, "/media/")
	ctx := context.Background()

	ref, err := s.Put(ctx, "Logo.PNG", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "/media/listings/"))
	assert.True(t, strings.HasSuffix(ref, ".png"))

	onDisk := filepath.Join(dir, "listings", filepath.Base(ref))
	b, err := os.ReadFile(onDisk)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(b))

	require.NoError(t, s.Delete(ctx, ref))
	_, err = os.Stat(onDisk)
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, s.Delete(ctx, ref), "second delete is a no-op")
	require.NoError(t, s.Delete(ctx, "https://elsewhere/x.png"))
}

func TestLocalStoreRejectsUnsupportedType(t *testing.T) {
	s := NewLocalStore(t.TempDir(), "/media")
	_, err := s.Put(context.Background(), "run.exe", strings.NewReader("MZ"))
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestPublicID(t *testing.T) {
	assert.Equal(t, "timebank/listings/abc", publicID("https://res.cloudinary.com/demo/image/upload/v1712/timebank/listings/abc.png"))
	assert.Equal(t, "timebank/listings/abc", publicID("https://res.cloudinary.com/demo/image/upload/timebank/listings/abc.jpg"))
	assert.Equal(t, "", publicID("https://res.cloudinary.com/demo/image/upload/v1/other/abc.jpg"))
	assert.Equal(t, "", publicID("/media/listings/abc.png"))
}

// Package blob stores listing images. The engines only ever see the returned reference.
package blob

import (
	"context"
	"errors"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// MaxImageBytes bounds a single uploaded image.
const MaxImageBytes = 5 << 20

var ErrUnsupported = errors.New("unsupported image type")

type Store interface {
	Put(ctx context.Context, filename string, r io.Reader) (string, error)
	Delete(ctx context.Context, ref string) error
}

var allowedExt = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true}

// Ext returns the lower-cased extension of filename if it is an accepted image type.
func Ext(filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExt[ext] {
		return "", ErrUnsupported
	}
	return ext, nil
}

// LocalStore writes images under Dir and serves them from URLPrefix.
type LocalStore struct {
	Dir       string
	URLPrefix string
}

func NewLocalStore(dir, urlPrefix string) *LocalStore {
	return &LocalStore{Dir: dir, URLPrefix: strings.TrimRight(urlPrefix, "/")}
}

func (s *LocalStore) Put(ctx context.Context, filename string, r io.Reader) (string, error) {
	ext, err := Ext(filename)
	if err != nil {
		return "", err
	}
	dir := filepath.Join(s.Dir, "listings")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	name := uuid.NewString() + ext
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return "", err
	}
	defer f.Close()

	n, err := io.Copy(f, io.LimitReader(r, MaxImageBytes+1))
	if err != nil {
		return "", err
	}
	if n > MaxImageBytes {
		_ = os.Remove(f.Name())
		return "", errors.New("image too large")
	}
	return path.Join(s.URLPrefix, "listings", name), nil
}

// Delete removes a previously stored image. Foreign references are ignored.
func (s *LocalStore) Delete(ctx context.Context, ref string) error {
	prefix := s.URLPrefix + "/listings/"
	if !strings.HasPrefix(ref, prefix) {
		return nil
	}
	name := path.Base(ref)
	err := os.Remove(filepath.Join(s.Dir, "listings", name))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

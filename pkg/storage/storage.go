// Package storage publishes encoded variants and hands back the URL they can
// be fetched from.
package storage

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Uploader stores a buffer under key and reports its public URL.
type Uploader interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

// ErrInvalidKey is returned for keys that are empty or escape the store root.
var ErrInvalidKey = errors.New("invalid storage key")

// ErrContentType is returned when a key's extension names a different media
// type than the one uploaded.
var ErrContentType = errors.New("content type does not match key")

// FileStore writes objects below Root and serves them from BaseURL.
type FileStore struct {
	Root    string
	BaseURL string
}

var _ Uploader = (*FileStore)(nil) // ensures we conform to the Uploader interface

// NewFileStore creates the root directory if needed.
func NewFileStore(root, baseURL string) (*FileStore, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("storage root is not configured")
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to resolve %s", root)
	}

	err = os.MkdirAll(abs, 0o755)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to create %s", abs)
	}

	return &FileStore{Root: abs, BaseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Upload writes data to a temporary file beside the target and renames it
// into place so readers never observe a partial object. A file carries no
// media type of its own, so the key's extension must agree with contentType.
func (fs *FileStore) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	target, err := fs.resolve(key)
	if err != nil {
		return "", err
	}

	err = checkType(key, contentType)
	if err != nil {
		return "", err
	}

	err = os.MkdirAll(filepath.Dir(target), 0o755)
	if err != nil {
		return "", errors.Wrapf(err, "unable to create directory for %s", key)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return "", errors.Wrapf(err, "unable to stage %s", key)
	}
	defer os.Remove(tmp.Name())

	_, err = tmp.Write(data)
	if err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", errors.Wrapf(err, "unable to write %s", key)
	}

	err = os.Rename(tmp.Name(), target)
	if err != nil {
		return "", errors.Wrapf(err, "unable to publish %s", key)
	}

	return fs.URL(key), nil
}

// Delete removes a stored object. Missing objects are not an error.
func (fs *FileStore) Delete(ctx context.Context, key string) error {
	target, err := fs.resolve(key)
	if err != nil {
		return err
	}

	err = os.Remove(target)
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "unable to delete %s", key)
	}
	return nil
}

// URL is the public address of key.
func (fs *FileStore) URL(key string) string {
	key = path.Clean("/" + filepath.ToSlash(key))
	if fs.BaseURL == "" {
		return "file://" + filepath.ToSlash(fs.Root) + key
	}
	return fs.BaseURL + key
}

//--------------------------------------------------------------------------------
// private

// checkType passes when either side is unknown.
func checkType(key, contentType string) error {
	if strings.TrimSpace(contentType) == "" {
		return nil
	}

	want, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return errors.Wrapf(err, "unable to parse content type %q", contentType)
	}

	byExt := mime.TypeByExtension(strings.ToLower(path.Ext(key)))
	if byExt == "" {
		return nil
	}

	got, _, err := mime.ParseMediaType(byExt)
	if err != nil || got == want {
		return nil
	}

	return errors.Wrapf(ErrContentType, "%s is %s, not %s", key, got, want)
}

func (fs *FileStore) resolve(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.Wrap(ErrInvalidKey, "empty key")
	}

	target := filepath.Join(fs.Root, filepath.FromSlash(key))
	rel, err := filepath.Rel(fs.Root, target)
	if err != nil {
		return "", errors.Wrapf(ErrInvalidKey, "%s: %v", key, err)
	}

	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) || filepath.IsAbs(rel) {
		return "", errors.Wrap(ErrInvalidKey, fmt.Sprintf("%s is outside %s", key, fs.Root))
	}

	return target, nil
}

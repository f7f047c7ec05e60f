// Package localfs implements storage.Provider on a local directory laid out
// as <root>/<bucket>/<stored path>. Objects are addressed publicly through
// <public base url>/<bucket>/<stored path>.
package localfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/scribeai/scribe/internal/storage"
)

// Provider stores objects on the host filesystem.
type Provider struct {
	root          string
	bucket        string
	publicBaseURL string
}

// New creates a filesystem provider rooted at root/bucket.
func New(root, bucket, publicBaseURL string) (*Provider, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	bucket = strings.Trim(strings.TrimSpace(bucket), "/")
	if bucket == "" || strings.ContainsAny(bucket, `/\`) || bucket == ".." {
		return nil, fmt.Errorf("invalid bucket name: %q", bucket)
	}
	if err := os.MkdirAll(filepath.Join(abs, bucket), 0o755); err != nil {
		return nil, fmt.Errorf("create bucket dir: %w", err)
	}
	return &Provider{
		root:          abs,
		bucket:        bucket,
		publicBaseURL: strings.TrimRight(strings.TrimSpace(publicBaseURL), "/"),
	}, nil
}

// Upload writes data to the bucket directory. A partially written object is
// removed when the copy fails.
func (p *Provider) Upload(ctx context.Context, name string, reader io.Reader) (storage.Object, error) {
	if err := ctx.Err(); err != nil {
		return storage.Object{}, err
	}
	dest, key, err := p.hostPath(name)
	if err != nil {
		return storage.Object{}, err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return storage.Object{}, fmt.Errorf("create parent dir: %w", err)
	}
	f, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return storage.Object{}, fmt.Errorf("create file: %w", err)
	}
	if _, err := io.Copy(f, reader); err != nil {
		_ = f.Close()
		_ = os.Remove(dest)
		return storage.Object{}, fmt.Errorf("write file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(dest)
		return storage.Object{}, fmt.Errorf("close file: %w", err)
	}
	return storage.Object{URL: p.publicURL(key), StoredPath: key}, nil
}

// Download opens a stored object.
func (p *Provider) Download(_ context.Context, storedPath string) (io.ReadCloser, error) {
	dest, _, err := p.hostPath(storedPath)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(dest)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", storage.ErrObjectNotFound, storedPath)
		}
		return nil, fmt.Errorf("open file: %w", err)
	}
	return f, nil
}

// Delete removes a stored object.
func (p *Provider) Delete(_ context.Context, storedPath string) error {
	dest, _, err := p.hostPath(storedPath)
	if err != nil {
		return err
	}
	if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

func (p *Provider) publicURL(key string) string {
	escaped := make([]string, 0, strings.Count(key, "/")+1)
	for _, seg := range strings.Split(key, "/") {
		escaped = append(escaped, url.PathEscape(seg))
	}
	return p.publicBaseURL + "/" + p.bucket + "/" + strings.Join(escaped, "/")
}

// hostPath converts a stored path into the host file path and the
// slash-separated key reported back to callers.
func (p *Provider) hostPath(name string) (string, string, error) {
	key := strings.TrimSpace(filepath.ToSlash(name))
	if key == "" {
		return "", "", fmt.Errorf("stored path is required")
	}
	clean := filepath.Clean(filepath.FromSlash(key))
	if filepath.IsAbs(clean) || strings.HasPrefix(key, "/") {
		return "", "", fmt.Errorf("%w: absolute key %s", storage.ErrPathTraversal, name)
	}
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", "", fmt.Errorf("%w: %s", storage.ErrPathTraversal, name)
	}
	base := filepath.Join(p.root, p.bucket)
	joined := filepath.Join(base, clean)
	if !strings.HasPrefix(joined, base+string(filepath.Separator)) {
		return "", "", fmt.Errorf("%w: %s", storage.ErrPathTraversal, name)
	}
	return joined, filepath.ToSlash(clean), nil
}

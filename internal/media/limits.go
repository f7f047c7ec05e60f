package media

import (
	"bytes"
	"fmt"
	"io"
)

// MaxFileBytes is the upload cap used when none is configured.
const MaxFileBytes int64 = 25 * 1024 * 1024

// UploadLimit caps the size of a single uploaded file. The zero value and
// negative values fall back to MaxFileBytes.
type UploadLimit int64

// Bytes is the effective cap.
func (l UploadLimit) Bytes() int64 {
	if l <= 0 {
		return MaxFileBytes
	}
	return int64(l)
}

// Read buffers r in full. A declared size above the cap is refused before
// anything is read; otherwise the cap is enforced on the bytes actually seen,
// since multipart sizes are client supplied. A declared size of zero or less
// means unknown.
func (l UploadLimit) Read(r io.Reader, declared int64) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("reader is required")
	}
	limit := l.Bytes()
	if declared > limit {
		return nil, l.tooLarge()
	}
	var buf bytes.Buffer
	if declared > 0 {
		buf.Grow(int(declared))
	}
	n, err := buf.ReadFrom(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if n > limit {
		return nil, l.tooLarge()
	}
	return buf.Bytes(), nil
}

func (l UploadLimit) tooLarge() error {
	return fmt.Errorf("%w: max %d bytes", ErrFileTooLarge, l.Bytes())
}

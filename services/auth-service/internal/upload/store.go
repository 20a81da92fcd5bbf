// Package upload keeps captured face images on disk until they are relayed.
package upload

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

var (
	ErrEmptyImage       = errors.New("image is empty")
	ErrImageTooLarge    = errors.New("image exceeds the size limit")
	ErrUnsupportedImage = errors.New("only jpeg and png images are allowed")
)

var allowedTypes = []string{"image/jpeg", "image/png"}

const sniffLen = 3072

// Store writes pending uploads into a single directory.
type Store struct {
	dir      string
	maxBytes int64
}

// NewStore creates the upload directory if needed.
func NewStore(dir string, maxBytes int64) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	return &Store{dir: dir, maxBytes: maxBytes}, nil
}

// MaxBytes is the largest image Save accepts.
func (s *Store) MaxBytes() int64 {
	return s.maxBytes
}

// Save sniffs r, rejects anything but a jpeg or png within the size limit and writes it
// to a uniquely named file. The caller owns the returned Pending and must Remove it.
func (s *Store) Save(r io.Reader) (*Pending, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if n == 0 {
		return nil, ErrEmptyImage
	}
	head = head[:n]

	mtype := mimetype.Detect(head)
	if !mimetype.EqualsAny(mtype.String(), allowedTypes...) {
		return nil, ErrUnsupportedImage
	}
	if int64(n) > s.maxBytes {
		return nil, ErrImageTooLarge
	}

	filename := "face-" + uuid.NewString() + mtype.Extension()
	pending := &Pending{
		path:        filepath.Join(s.dir, filename),
		filename:    filename,
		contentType: mtype.String(),
	}

	file, err := os.OpenFile(pending.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to create pending upload: %w", err)
	}

	written, err := writeLimited(file, head, r, s.maxBytes)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err == nil && written > s.maxBytes {
		err = ErrImageTooLarge
	}
	if err != nil {
		_ = pending.Remove()
		return nil, err
	}

	return pending, nil
}

func writeLimited(w io.Writer, head []byte, rest io.Reader, maxBytes int64) (int64, error) {
	if _, err := w.Write(head); err != nil {
		return 0, fmt.Errorf("failed to write pending upload: %w", err)
	}

	// One byte past the limit is enough to tell the image is too large.
	copied, err := io.Copy(w, io.LimitReader(rest, maxBytes-int64(len(head))+1))
	if err != nil {
		return 0, fmt.Errorf("failed to write pending upload: %w", err)
	}

	return int64(len(head)) + copied, nil
}

// Pending is an image waiting on disk to be relayed.
type Pending struct {
	path        string
	filename    string
	contentType string
}

func (p *Pending) Filename() string {
	return p.filename
}

func (p *Pending) ContentType() string {
	return p.contentType
}

func (p *Pending) Path() string {
	return p.path
}

func (p *Pending) Open() (io.ReadCloser, error) {
	return os.Open(p.path)
}

// Remove deletes the file. Removing an already removed upload is not an error.
func (p *Pending) Remove() error {
	if err := os.Remove(p.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove pending upload: %w", err)
	}

	return nil
}

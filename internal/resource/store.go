// Package resource reads voice line resources from an [fs.FS], either the
// embedded asset set or an override directory on disk.
//
// Resources can be fetched in one call or read incrementally with a
// [ChunkReader], one chunk per frame, so a large file never stalls the frame
// loop.
package resource

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"sort"
)

// ErrResourceNotFound is returned when a resource path does not exist.
var ErrResourceNotFound = errors.New("resource: not found")

// DefaultChunkSize is the number of bytes a [ChunkReader] reads per call.
const DefaultChunkSize = 64 * 1024

// Store is a read-only resource store.
type Store struct {
	fsys      fs.FS
	chunkSize int
}

// Option configures a [Store].
type Option func(*Store)

// WithChunkSize sets the number of bytes read per [ChunkReader.Next].
func WithChunkSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

// New returns a store over fsys.
func New(fsys fs.FS, opts ...Option) *Store {
	s := &Store{fsys: fsys, chunkSize: DefaultChunkSize}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ChunkSize returns the configured read size.
func (s *Store) ChunkSize() int { return s.chunkSize }

// Open starts an incremental read of the resource at p.
func (s *Store) Open(p string) (*ChunkReader, error) {
	f, err := s.fsys.Open(p)
	if err != nil {
		return nil, wrapOpenErr(p, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("resource: stat %q: %w", p, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("resource: %q is a directory: %w", p, ErrResourceNotFound)
	}
	return &ChunkReader{
		path:  p,
		f:     f,
		chunk: s.chunkSize,
		size:  info.Size(),
		buf:   make([]byte, 0, info.Size()),
	}, nil
}

// Fetch reads the whole resource at p.
func (s *Store) Fetch(p string) ([]byte, error) {
	data, err := fs.ReadFile(s.fsys, p)
	if err != nil {
		return nil, wrapOpenErr(p, err)
	}
	return data, nil
}

// Exists reports whether a regular file exists at p.
func (s *Store) Exists(p string) bool {
	info, err := fs.Stat(s.fsys, p)
	return err == nil && !info.IsDir()
}

// List returns the sorted paths matching pattern (see [fs.Glob]).
func (s *Store) List(pattern string) ([]string, error) {
	matches, err := fs.Glob(s.fsys, pattern)
	if err != nil {
		return nil, fmt.Errorf("resource: list %q: %w", pattern, err)
	}
	sort.Strings(matches)
	return matches, nil
}

func wrapOpenErr(p string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("resource: %q: %w", p, ErrResourceNotFound)
	}
	return fmt.Errorf("resource: open %q: %w", p, err)
}

// ChunkReader reads a resource a bounded number of bytes at a time. It is not
// safe for concurrent use.
type ChunkReader struct {
	path  string
	f     fs.File
	chunk int
	size  int64
	buf   []byte
	done  bool
}

// Next reads at most one chunk and reports whether the resource has been
// read completely. The file is closed once done is true or an error is
// returned.
func (r *ChunkReader) Next() (done bool, err error) {
	if r.done {
		return true, nil
	}

	start := len(r.buf)
	if cap(r.buf)-start < r.chunk {
		grown := make([]byte, start, start+r.chunk)
		copy(grown, r.buf)
		r.buf = grown
	}
	n, err := r.f.Read(r.buf[start : start+r.chunk])
	r.buf = r.buf[:start+n]

	switch {
	case errors.Is(err, io.EOF):
		r.finish()
		return true, nil
	case err != nil:
		r.finish()
		return false, fmt.Errorf("resource: read %q: %w", r.path, err)
	case r.size > 0 && int64(len(r.buf)) >= r.size:
		r.finish()
		return true, nil
	}
	return false, nil
}

func (r *ChunkReader) finish() {
	r.done = true
	r.f.Close()
}

// Bytes returns the bytes read so far.
func (r *ChunkReader) Bytes() []byte { return r.buf }

// Path returns the resource path.
func (r *ChunkReader) Path() string { return r.path }

// Progress returns the number of bytes read and the size reported by the
// store. total is zero when the store does not know the size.
func (r *ChunkReader) Progress() (read, total int64) {
	return int64(len(r.buf)), r.size
}

// Close releases the underlying file. It is safe to call after the read
// finished.
func (r *ChunkReader) Close() error {
	if r.done {
		return nil
	}
	r.done = true
	return r.f.Close()
}

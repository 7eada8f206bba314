package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/danferreira/blocktrack/internal/metadata"
	"github.com/spf13/afero"
)

var ErrNegativeOffset = errors.New("negative offset")

type File struct {
	File   afero.File
	Path   string
	Length int64
}

// Storage maps the concatenated payload of a torrent onto its files.
type Storage struct {
	Files []File
}

// New opens or creates every file under dir.
func New(fs afero.Fs, dir string, files []metadata.FileInfo) (*Storage, error) {
	s := &Storage{}

	for _, f := range files {
		path := filepath.Join(dir, f.Path)

		if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to create dirs for %s: %w", path, err)
		}
		file, err := fs.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to open %s: %w", path, err)
		}
		s.Files = append(s.Files, File{
			File:   file,
			Path:   path,
			Length: f.Length,
		})
	}

	return s, nil
}

// segments calls fn for each file region overlapping [off, off+n). fn gets
// the file, the offset inside it and the [lo, hi) window of the caller's
// buffer. Iteration stops at the first error or short transfer.
func (s *Storage) segments(off int64, n int, fn func(f File, at int64, lo, hi int) (int, error)) (int, error) {
	if off < 0 {
		return 0, ErrNegativeOffset
	}

	var base int64
	done := 0
	for _, f := range s.Files {
		if done == n {
			break
		}

		end := base + f.Length
		pos := off + int64(done)
		if pos >= base && pos < end {
			at := pos - base
			chunk := min(int64(n-done), f.Length-at)

			m, err := fn(f, at, done, done+int(chunk))
			done += m
			if err != nil {
				return done, err
			}
			if int64(m) < chunk {
				return done, nil
			}
		}
		base = end
	}

	return done, nil
}

func (s *Storage) ReadAt(buf []byte, off int64) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}

	n, err := s.segments(off, len(buf), func(f File, at int64, lo, hi int) (int, error) {
		m, err := f.File.ReadAt(buf[lo:hi], at)
		// short files are reported by the length check below
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			err = nil
		}
		return m, err
	})
	if err == nil && n < len(buf) {
		err = io.EOF
	}

	return n, err
}

func (s *Storage) WriteAt(data []byte, off int64) (int, error) {
	n, err := s.segments(off, len(data), func(f File, at int64, lo, hi int) (int, error) {
		return f.File.WriteAt(data[lo:hi], at)
	})
	if err == nil && n < len(data) {
		err = io.ErrShortWrite
	}

	return n, err
}

func (s *Storage) Close() error {
	var err error
	for _, sf := range s.Files {
		if e := sf.File.Close(); e != nil && err == nil {
			// record the first error encountered
			err = e
		}
	}
	return err
}

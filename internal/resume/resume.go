package resume

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/danferreira/blocktrack/internal/blockman"
	"github.com/jackpal/bencode-go"
	"github.com/spf13/afero"
)

const version = 1

var (
	ErrUnsupportedVersion = errors.New("unsupported resume file version")
	ErrInfoHashMismatch   = errors.New("resume file belongs to another torrent")
	ErrGeometryMismatch   = errors.New("resume file geometry does not match")
)

type resumeFile struct {
	Version     int    `bencode:"version"`
	InfoHash    string `bencode:"info hash"`
	PieceLength int64  `bencode:"piece length"`
	TotalLength int64  `bencode:"total length"`
	Bitfield    string `bencode:"bitfield"`
}

// Save writes the completion mask of m to path. The file is written next to
// path and renamed into place.
func Save(fs afero.Fs, path string, infoHash [20]byte, m *blockman.Manager) error {
	rf := resumeFile{
		Version:     version,
		InfoHash:    string(infoHash[:]),
		PieceLength: m.BlockLength(),
		TotalLength: m.TotalLength(),
		Bitfield:    string(m.Bitfield()),
	}

	var buf bytes.Buffer
	if err := bencode.Marshal(&buf, rf); err != nil {
		return fmt.Errorf("failed to encode resume data: %w", err)
	}

	if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create resume dir: %w", err)
	}

	tmp := path + ".tmp"
	if err := afero.WriteFile(fs, tmp, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write resume data: %w", err)
	}
	if err := fs.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to move resume data into place: %w", err)
	}

	slog.Debug("resume data saved", "path", path, "completed", m.CompletedLength())

	return nil
}

// Load restores the completion mask of m from path. Reservations are
// cleared. m is left untouched on any error.
func Load(fs afero.Fs, path string, infoHash [20]byte, m *blockman.Manager) error {
	file, err := fs.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	rf := resumeFile{}
	if err := bencode.Unmarshal(file, &rf); err != nil {
		return fmt.Errorf("failed to decode resume data: %w", err)
	}

	if rf.Version != version {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, rf.Version)
	}
	if rf.InfoHash != string(infoHash[:]) {
		return ErrInfoHashMismatch
	}
	if rf.PieceLength != m.BlockLength() || rf.TotalLength != m.TotalLength() {
		return fmt.Errorf("%w: piece length %d, total length %d", ErrGeometryMismatch, rf.PieceLength, rf.TotalLength)
	}
	if !m.SetBitfield([]byte(rf.Bitfield)) {
		return fmt.Errorf("%w: bitfield of %d bytes", ErrGeometryMismatch, len(rf.Bitfield))
	}

	slog.Debug("resume data loaded", "path", path, "completed", m.CompletedLength())

	return nil
}

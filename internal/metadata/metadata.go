package metadata

import (
	"bytes"
	"crypto/sha1"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"slices"
	"strings"

	"github.com/danferreira/blocktrack/internal/blockman"
	"github.com/jackpal/bencode-go"
	"github.com/spf13/afero"
)

var ErrInvalidPieces = errors.New("pieces length is not a multiple of 20")

type Metadata struct {
	Announce *url.URL
	Info     Info
}

type Info struct {
	Name        string
	Pieces      [][20]byte
	PieceLength int
	Files       []FileInfo
	InfoHash    [20]byte
}

type FileInfo struct {
	Path   string
	Length int64
}

type torrentFile struct {
	Announce string          `bencode:"announce"`
	Info     torrentFileInfo `bencode:"info"`
}

type torrentFileInfo struct {
	Name        string                `bencode:"name"`
	Pieces      string                `bencode:"pieces"`
	PieceLength int                   `bencode:"piece length"`
	Length      int64                 `bencode:"length"`
	Files       []torrentFileInfoFile `bencode:"files"`
}

type torrentFileInfoFile struct {
	Path   []string `bencode:"path"`
	Length int64    `bencode:"length"`
}

// Parse reads a .torrent file from fs.
func Parse(fs afero.Fs, path string) (*Metadata, error) {
	file, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	m, err := Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return m, nil
}

func Decode(r io.Reader) (*Metadata, error) {
	tf := torrentFile{}
	if err := bencode.Unmarshal(r, &tf); err != nil {
		return nil, err
	}

	announceURL, err := url.Parse(tf.Announce)
	if err != nil {
		return nil, err
	}

	if len(tf.Info.Pieces)%20 != 0 {
		return nil, ErrInvalidPieces
	}

	pieces := make([][20]byte, 0, len(tf.Info.Pieces)/20)
	for chunk := range slices.Chunk([]byte(tf.Info.Pieces), 20) {
		pieces = append(pieces, [20]byte(chunk))
	}

	hash, err := tf.Info.hash()
	if err != nil {
		return nil, err
	}

	return &Metadata{
		Announce: announceURL,
		Info: Info{
			Name:        tf.Info.Name,
			Pieces:      pieces,
			PieceLength: tf.Info.PieceLength,
			Files:       tf.Info.files(),
			InfoHash:    hash,
		},
	}, nil
}

func (i *torrentFileInfo) files() []FileInfo {
	if len(i.Files) == 0 {
		return []FileInfo{{Path: i.Name, Length: i.Length}}
	}

	files := make([]FileInfo, 0, len(i.Files))
	for _, f := range i.Files {
		files = append(files, FileInfo{
			Path:   filepath.Join(i.Name, strings.Join(f.Path, "/")),
			Length: f.Length,
		})
	}
	return files
}

func (i *torrentFileInfo) hash() ([20]byte, error) {
	dict := map[string]interface{}{
		"name":         i.Name,
		"pieces":       i.Pieces,
		"piece length": i.PieceLength,
	}

	// single-file torrents carry "length", multi-file ones "files"
	if len(i.Files) == 0 {
		dict["length"] = i.Length
	} else {
		dict["files"] = i.Files
	}

	var buf bytes.Buffer
	if err := bencode.Marshal(&buf, dict); err != nil {
		return [20]byte{}, err
	}

	return sha1.Sum(buf.Bytes()), nil
}

func (i *Info) TotalLength() int64 {
	var total int64
	for _, file := range i.Files {
		total += file.Length
	}

	return total
}

// NewManager returns a block manager with one block per piece.
func (i *Info) NewManager(r blockman.Randomizer) *blockman.Manager {
	return blockman.New(int64(i.PieceLength), i.TotalLength(), r)
}

// FileSpan returns the byte range file index occupies in the concatenated
// payload.
func (i *Info) FileSpan(index int) (offset, length int64, ok bool) {
	if index < 0 || index >= len(i.Files) {
		return 0, 0, false
	}
	for _, f := range i.Files[:index] {
		offset += f.Length
	}
	return offset, i.Files[index].Length, true
}

// Select restricts m to the pieces covering the given files and enables
// the filter.
func (i *Info) Select(m *blockman.Manager, indexes ...int) error {
	for _, index := range indexes {
		offset, length, ok := i.FileSpan(index)
		if !ok {
			return fmt.Errorf("file index %d out of range", index)
		}
		m.AddFilter(offset, length)
	}
	m.EnableFilter()

	return nil
}

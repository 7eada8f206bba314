package verify

import (
	"bytes"
	"context"
	"crypto/sha1"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"

	"github.com/danferreira/blocktrack/internal/blockman"
	"golang.org/x/sync/errgroup"
)

var ErrPieceCountMismatch = errors.New("piece count does not match block count")

type Config struct {
	Workers int
}

func NewDefaultConfig() Config {
	return Config{
		Workers: runtime.NumCPU(),
	}
}

// Scan hash-checks every piece in storage and marks the matching blocks
// complete in m. The completion mask is replaced as a whole, so reservations
// are dropped; run it before handing out work. It returns the number of
// verified pieces.
func Scan(ctx context.Context, m *blockman.Manager, storage io.ReaderAt, hashes [][20]byte, config Config) (int, error) {
	if len(hashes) != m.CountBlock() {
		return 0, fmt.Errorf("%w: %d hashes, %d blocks", ErrPieceCountMismatch, len(hashes), m.CountBlock())
	}

	verified := make([]bool, len(hashes))

	g, ctx := errgroup.WithContext(ctx)
	if config.Workers > 0 {
		g.SetLimit(config.Workers)
	}

	for index, hash := range hashes {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			buf := make([]byte, m.BlockLengthAt(index))
			_, err := storage.ReadAt(buf, int64(index)*m.BlockLength())
			if err != nil && !errors.Is(err, io.EOF) {
				slog.Error("scan disk error", "index", index, "error", err)
				return nil
			}

			verified[index] = checkIntegrity(hash, buf)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return 0, err
	}

	bf := m.Bitfield()
	count := 0
	for index, ok := range verified {
		if ok {
			bf.SetPiece(index)
			count++
		}
	}
	m.SetBitfield(bf)

	slog.Info("disk scan finished", "verified", count, "pieces", len(hashes))

	return count, nil
}

func checkIntegrity(expectedHash [20]byte, data []byte) bool {
	hash := sha1.Sum(data)
	return bytes.Equal(hash[:], expectedHash[:])
}

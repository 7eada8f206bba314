package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/danferreira/blocktrack/internal/bitfield"
	"github.com/danferreira/blocktrack/internal/metadata"
	"github.com/danferreira/blocktrack/internal/picker"
	"github.com/danferreira/blocktrack/internal/resume"
	"github.com/danferreira/blocktrack/internal/storage"
	"github.com/danferreira/blocktrack/internal/verify"
	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
)

func main() {
	path := flag.String("file", "", "The torrent file")
	dir := flag.String("dir", ".", "Download directory")
	resumePath := flag.String("resume", "", "Resume file to load and update")
	strategy := flag.String("strategy", "random", "Piece selection strategy: random, sequential or sparse")
	only := flag.String("only", "", "Comma separated file indexes to download")
	workers := flag.Int("workers", verify.NewDefaultConfig().Workers, "Concurrent piece hashers")
	verbose := flag.Bool("v", false, "Debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	s, err := picker.ParseStrategy(*strategy)
	if err != nil {
		log.Fatal(err)
	}

	afs := afero.NewOsFs()

	m, err := metadata.Parse(afs, *path)
	if err != nil {
		log.Fatal(err)
	}

	manager := m.Info.NewManager(nil)

	if *only != "" {
		indexes, err := parseIndexes(*only)
		if err != nil {
			log.Fatal(err)
		}
		if err := m.Info.Select(manager, indexes...); err != nil {
			log.Fatal(err)
		}
	}

	loaded := false
	if *resumePath != "" {
		err := resume.Load(afs, *resumePath, m.Info.InfoHash, manager)
		switch {
		case err == nil:
			loaded = true
		case errors.Is(err, fs.ErrNotExist):
			slog.Info("no resume data, scanning disk", "path", *resumePath)
		default:
			slog.Warn("ignoring resume data", "error", err)
		}
	}

	if !loaded {
		st, err := storage.New(afs, *dir, m.Info.Files)
		if err != nil {
			log.Fatal(err)
		}

		_, err = verify.Scan(context.Background(), manager, st, m.Info.Pieces, verify.Config{Workers: *workers})
		st.Close()
		if err != nil {
			log.Fatal(err)
		}
	}

	if *resumePath != "" {
		if err := resume.Save(afs, *resumePath, m.Info.InfoHash, manager); err != nil {
			log.Fatal(err)
		}
	}

	p := picker.New(manager, picker.Config{Strategy: s})
	stats := p.Stats()

	fmt.Printf("%s\n", m.Info.Name)
	fmt.Printf("  pieces:    %d x %s\n", manager.CountBlock(), humanize.IBytes(uint64(manager.BlockLength())))
	fmt.Printf("  completed: %s / %s (%d pieces missing)\n",
		humanize.IBytes(uint64(stats.Completed)), humanize.IBytes(uint64(stats.Size)), stats.Missing)

	seeder := bitfield.New(manager.CountBlock())
	seeder.Fill(manager.CountBlock())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w, ok, err := nextWork(ctx, p, seeder)
	if err != nil {
		log.Fatal(err)
	}
	if ok {
		fmt.Printf("  next:      piece %d at %s (%s, %s)\n",
			w.Index, humanize.Comma(w.Offset), humanize.IBytes(uint64(w.Length)), s)
	} else {
		fmt.Println("  next:      nothing left to download")
	}
}

// nextWork asks a scheduler for the block peer would be sent first.
func nextWork(ctx context.Context, p *picker.Picker, peer bitfield.Bitfield) (picker.Work, bool, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s := picker.NewScheduler(p)
	go s.Run(ctx)

	return s.Request(ctx, peer)
}

func parseIndexes(s string) ([]int, error) {
	var indexes []int
	for _, part := range strings.Split(s, ",") {
		i, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid file index %q: %w", part, err)
		}
		indexes = append(indexes, i)
	}
	return indexes, nil
}

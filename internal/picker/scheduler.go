package picker

import (
	"context"
	"log/slog"

	"github.com/danferreira/blocktrack/internal/bitfield"
)

type request struct {
	peer  bitfield.Bitfield
	reply chan Work
}

// Scheduler confines a Picker to a single goroutine and talks to peer
// workers through channels.
type Scheduler struct {
	picker *Picker

	requests  chan request
	completed chan int
	failed    chan int
	finished  chan struct{}
}

func NewScheduler(p *Picker) *Scheduler {
	return &Scheduler{
		picker:    p,
		requests:  make(chan request),
		completed: make(chan int),
		failed:    make(chan int),
		finished:  make(chan struct{}),
	}
}

// Run serves requests until ctx is done. Finished is closed once every
// wanted block is complete; Run keeps serving after that so late results
// are still recorded.
func (s *Scheduler) Run(ctx context.Context) {
	done := s.picker.Done()
	if done {
		close(s.finished)
	}

	for {
		select {
		case <-ctx.Done():
			slog.Info("scheduler context done, shutting down")
			return

		case r := <-s.requests:
			w, ok := s.picker.Next(r.peer)
			if ok {
				r.reply <- w
			}
			close(r.reply)

		case index := <-s.failed:
			slog.Warn("requeueing failed block", "index", index)
			s.picker.Release(index)

		case index := <-s.completed:
			s.picker.Complete(index)

			if !done && s.picker.Done() {
				slog.Info("all blocks complete")
				done = true
				close(s.finished)
			}
		}
	}
}

// Request asks for the next block peer can serve. ok is false when there
// is nothing to download from this peer.
func (s *Scheduler) Request(ctx context.Context, peer bitfield.Bitfield) (w Work, ok bool, err error) {
	r := request{peer: peer, reply: make(chan Work, 1)}

	select {
	case s.requests <- r:
	case <-ctx.Done():
		return Work{}, false, ctx.Err()
	}

	select {
	case w, ok = <-r.reply:
		return w, ok, nil
	case <-ctx.Done():
		return Work{}, false, ctx.Err()
	}
}

func (s *Scheduler) Complete(ctx context.Context, index int) error {
	select {
	case s.completed <- index:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) Fail(ctx context.Context, index int) error {
	select {
	case s.failed <- index:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) Finished() <-chan struct{} { return s.finished }

package training

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

//Handle identifies one scheduled callback.
type Handle uint64

//Scheduler runs callbacks at most once, on the next frame.
type Scheduler interface {
	Schedule(fn func()) Handle
	Cancel(h Handle)
}

//DefaultFrameRate is the refresh rate frames are driven at.
const DefaultFrameRate = 60

//FrameScheduler queues callbacks and runs them in order when a frame fires. Frames come
//from a clock ticker in Run, or from explicit calls to Flush.
type FrameScheduler struct {
	clock    clock.Clock
	interval time.Duration

	mu      sync.Mutex
	last    Handle
	pending map[Handle]func()
	order   []Handle
}

//NewFrameScheduler creates a scheduler ticking frameRate times per second on clk.
func NewFrameScheduler(clk clock.Clock, frameRate int) *FrameScheduler {
	if frameRate <= 0 {
		frameRate = DefaultFrameRate
	}
	return &FrameScheduler{
		clock:    clk,
		interval: time.Second / time.Duration(frameRate),
		pending:  make(map[Handle]func()),
	}
}

//Interval is the time between two frames.
func (s *FrameScheduler) Interval() time.Duration {
	return s.interval
}

//Schedule queues fn for the next frame.
func (s *FrameScheduler) Schedule(fn func()) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last++
	s.pending[s.last] = fn
	s.order = append(s.order, s.last)
	return s.last
}

//Cancel drops a queued callback. Unknown or already run handles are ignored.
func (s *FrameScheduler) Cancel(h Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, h)
}

//Pending is the number of callbacks waiting for a frame.
func (s *FrameScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

//Flush runs one frame on the calling goroutine and returns how many callbacks ran.
//Callbacks scheduled while the frame runs wait for the next one.
func (s *FrameScheduler) Flush() int {
	s.mu.Lock()
	frame := s.order
	s.order = nil
	s.mu.Unlock()

	ran := 0
	for _, h := range frame {
		s.mu.Lock()
		fn, ok := s.pending[h]
		delete(s.pending, h)
		s.mu.Unlock()
		if !ok {
			continue
		}
		fn()
		ran++
	}
	return ran
}

//Run drives frames from the clock until ctx is done.
func (s *FrameScheduler) Run(ctx context.Context) error {
	ticker := s.clock.Ticker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Flush()
		}
	}
}

// Package progress describes the progress of long-running stages as a stream of events.
package progress

import "sync"

// Stage is a step of the pipeline.
type Stage string

// Stages of the pipeline.
const (
	Load       Stage = "load"
	Classify   Stage = "classify"
	Generate   Stage = "generate"
	Prioritize Stage = "prioritize"
)

// An Event indicates how far a stage went, in percent.
type Event struct {
	Stage   Stage
	Percent int
}

// A Func receives progress events. A nil Func ignores them.
type Func func(Event)

// Report sends an event to f, if f is not nil.
// percent is clamped to [0, 100].
func (f Func) Report(stage Stage, percent int) {
	if f == nil {
		return
	}
	if percent < 0 {
		percent = 0
	} else if percent > 100 {
		percent = 100
	}
	f(Event{Stage: stage, Percent: percent})
}

// Ratio reports done/total as a percentage.
func (f Func) Ratio(stage Stage, done, total int) {
	if total <= 0 {
		f.Report(stage, 100)
		return
	}
	f.Report(stage, done*100/total)
}

// Scale returns a Func mapping the percentages of a sub-task to [lo, hi] before passing them to f.
func (f Func) Scale(lo, hi int) Func {
	if f == nil {
		return nil
	}
	return func(ev Event) {
		ev.Percent = lo + ev.Percent*(hi-lo)/100
		f(ev)
	}
}

// A Stream broadcasts events to subscribers, and remembers the last event of each stage
// so that callers can also poll it.
// Slow subscribers lose events rather than block the reporting stage.
type Stream struct {
	mu     sync.Mutex
	last   map[Stage]Event
	subs   []chan Event
	closed bool
}

// NewStream returns an empty stream.
func NewStream() *Stream {
	return &Stream{last: make(map[Stage]Event)}
}

// Func returns the reporting function feeding s.
func (s *Stream) Func() Func {
	return s.publish
}

func (s *Stream) publish(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if last, ok := s.last[ev.Stage]; ok && last.Percent == ev.Percent {
		return
	}
	s.last[ev.Stage] = ev
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribe returns a channel receiving the events published after the call.
// The channel is closed by Close.
func (s *Stream) Subscribe(buf int) <-chan Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan Event, buf)
	if s.closed {
		close(ch)
		return ch
	}
	s.subs = append(s.subs, ch)
	return ch
}

// Last returns the last event published for the given stage.
func (s *Stream) Last(stage Stage) (Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.last[stage]
	return ev, ok
}

// Close closes all subscriptions. Further events are dropped.
func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for _, ch := range s.subs {
		close(ch)
	}
	s.subs = nil
}

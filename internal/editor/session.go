// Package editor implements the entry editor workflow: a form for
// description, category and duration that can be fed by a stopwatch, and
// that produces a save payload.
package editor

import (
	"errors"
	"strconv"
	"strings"
	"sync"

	"timetracker/internal/core"
)

const (
	TitleEdit = "Edit Entry"
	TitleNew  = "Log Time"
)

var ErrClosed = errors.New("editor session closed")

// Payload is what the editor hands to the tracker on save.
type Payload struct {
	ID              string // empty for a new entry
	Description     string
	DurationMinutes int
	CategoryID      string
}

// Session is one open editor. It is safe for concurrent use.
type Session struct {
	mu          sync.Mutex
	entryID     string
	date        string
	description string
	categoryID  string
	hours       int
	minutes     int
	closed      bool
	watch       *Stopwatch
}

// Option configures a Session.
type Option func(*Session)

// WithTicker injects the ticker used by the session stopwatch.
func WithTicker(fn TickerFunc) Option {
	return func(s *Session) { s.watch = NewStopwatch(fn) }
}

// Open starts an editor for date. A nil entry opens a blank form; otherwise
// the form is pre-filled from entry. Without a category of its own the form
// selects the first available category.
func Open(date string, entry *core.TimeEntry, categories []core.Category, opts ...Option) *Session {
	s := &Session{date: date}
	for _, opt := range opts {
		opt(s)
	}
	if s.watch == nil {
		s.watch = NewStopwatch(nil)
	}

	if entry != nil {
		s.entryID = entry.ID
		s.description = entry.Description
		s.hours, s.minutes = core.SplitDuration(entry.DurationMinutes)
		s.categoryID = entry.CategoryID
	}
	if s.categoryID == "" && len(categories) > 0 {
		s.categoryID = categories[0].ID
	}
	return s
}

// Title is the modal heading.
func (s *Session) Title() string {
	if s.EntryID() != "" {
		return TitleEdit
	}
	return TitleNew
}

func (s *Session) EntryID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entryID
}

func (s *Session) Date() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.date
}

// Form returns the current field values.
func (s *Session) Form() (description, categoryID string, hours, minutes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.description, s.categoryID, s.hours, s.minutes
}

// Update replaces the manual fields. Hours and minutes are parsed leniently:
// anything that is not an integer counts as 0.
func (s *Session) Update(description, categoryID, hours, minutes string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.description = description
	s.categoryID = categoryID
	s.hours = parseField(hours)
	s.minutes = parseField(minutes)
	return nil
}

// StartTimer starts or resumes the stopwatch.
//
// The watch is only started and halted with s.mu held, so a concurrent Close
// cannot miss a ticker that is about to start. The ticker goroutine never
// takes s.mu.
func (s *Session) StartTimer() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.watch.Start()
	return nil
}

// StopTimer stops the stopwatch and overwrites hours and minutes with the
// elapsed time rounded to whole minutes.
func (s *Session) StopTimer() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.hours, s.minutes = core.SplitDuration(core.RoundSecondsToMinutes(s.watch.Stop()))
	return nil
}

// TimerRunning reports whether the stopwatch is counting.
func (s *Session) TimerRunning() bool {
	return s.watch.State() == Running
}

// TimerState is the stopwatch state.
func (s *Session) TimerState() State {
	return s.watch.State()
}

// Clock renders the elapsed stopwatch time as HH:MM:SS.
func (s *Session) Clock() string {
	return core.FormatClock(s.watch.Elapsed())
}

// Save returns the payload for the current field values. The stopwatch is not
// consulted; only the fields count.
func (s *Session) Save() (Payload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Payload{}, ErrClosed
	}
	return Payload{
		ID:              s.entryID,
		Description:     s.description,
		DurationMinutes: s.hours*60 + s.minutes,
		CategoryID:      s.categoryID,
	}, nil
}

// Close discards the session and stops the stopwatch. It is idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.watch.Reset()
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func parseField(v string) int {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0
	}
	return n
}

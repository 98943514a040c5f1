// Package scheduler owns the automatic certification triggers: a
// fixed-interval ticker and a debounced watch over the import directory.
// It only emits trigger items; the certification worker consumes them on
// its own goroutine, so no callback ever invokes certification inline.
package scheduler

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

// Source identifies what fired a trigger.
type Source string

const (
	SourceTimer  Source = "timer"
	SourceWatch  Source = "watch"
	SourceManual Source = "manual"
)

// Trigger is one request for a certification scan.
type Trigger struct {
	Source Source
	Path   string // set for watch triggers
}

// Scheduler multiplexes timer ticks and file-watch events onto a single
// trigger channel. The channel is bounded and sends are non-blocking: a
// trigger that arrives while the consumer is busy is dropped, matching the
// skip-not-queue contract for overlapping scans.
type Scheduler struct {
	clock    clockwork.Clock
	interval time.Duration
	debounce time.Duration
	log      *logrus.Logger

	watcher  *fsnotify.Watcher
	triggers chan Trigger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock injects a clock (tests use a fake).
func WithClock(c clockwork.Clock) Option {
	return func(s *Scheduler) {
		s.clock = c
	}
}

// WithDebounce sets the quiet window after the last file event before a
// watch trigger fires.
func WithDebounce(d time.Duration) Option {
	return func(s *Scheduler) {
		s.debounce = d
	}
}

// WithLogger sets the logger.
func WithLogger(l *logrus.Logger) Option {
	return func(s *Scheduler) {
		s.log = l
	}
}

// New creates a scheduler emitting a timer trigger every interval.
func New(interval time.Duration, opts ...Option) *Scheduler {
	s := &Scheduler{
		clock:    clockwork.NewRealClock(),
		interval: interval,
		debounce: 2 * time.Second,
		log:      logrus.New(),
		triggers: make(chan Trigger, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Triggers is the channel the certification worker consumes.
func (s *Scheduler) Triggers() <-chan Trigger {
	return s.triggers
}

// Watch adds an import directory to the file watch.
func (s *Scheduler) Watch(dir string) error {
	if s.watcher == nil {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			return err
		}
		s.watcher = w
	}
	return s.watcher.Add(dir)
}

// Run pumps triggers until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	var (
		watchEvents chan fsnotify.Event
		watchErrors chan error
	)
	if s.watcher != nil {
		watchEvents = make(chan fsnotify.Event)
		watchErrors = make(chan error)
		go s.forwardWatch(ctx, watchEvents, watchErrors)
	}

	var (
		pendingPath string
		debounce    clockwork.Timer
		debounceCh  <-chan time.Time
	)

	for {
		select {
		case <-ctx.Done():
			if s.watcher != nil {
				s.watcher.Close()
			}
			return ctx.Err()

		case <-ticker.Chan():
			s.emit(Trigger{Source: SourceTimer})

		case ev := <-watchEvents:
			if !isWorkbookEvent(ev) {
				continue
			}
			pendingPath = ev.Name
			// Restart the quiet window; exports are written in bursts.
			if debounce == nil {
				debounce = s.clock.NewTimer(s.debounce)
			} else {
				debounce.Reset(s.debounce)
			}
			debounceCh = debounce.Chan()

		case <-debounceCh:
			s.emit(Trigger{Source: SourceWatch, Path: pendingPath})
			pendingPath = ""
			debounceCh = nil

		case err := <-watchErrors:
			s.log.WithError(err).Warn("file watch error")
		}
	}
}

func (s *Scheduler) forwardWatch(ctx context.Context, events chan<- fsnotify.Event, errs chan<- error) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			select {
			case errs <- err:
			case <-ctx.Done():
				return
			}
		}
	}
}

// emit performs a non-blocking send; a full channel means a scan is already
// pending and the new trigger is dropped.
func (s *Scheduler) emit(t Trigger) {
	select {
	case s.triggers <- t:
	default:
		s.log.WithField("source", t.Source).Debug("trigger dropped, scan already pending")
	}
}

func isWorkbookEvent(ev fsnotify.Event) bool {
	if !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Rename) {
		return false
	}
	ext := strings.ToLower(filepath.Ext(ev.Name))
	return ext == ".xlsx"
}

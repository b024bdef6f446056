// Package tracker is the view layer: it loads entries and categories, keeps
// the per-user snapshot the pages are rendered from, and routes edits through
// the entry store followed by a full refetch.
package tracker

import (
	"context"
	"errors"
	"strconv"
	"time"

	"timetracker/internal/cache"
	"timetracker/internal/core"
	"timetracker/internal/editor"
	"timetracker/internal/log"
	"timetracker/internal/tables"
)

const anonymousKey = "anonymous"

type (
	EntryRepository interface {
		List(ctx context.Context) []core.FlatTimeEntry
		Save(ctx context.Context, e core.FlatTimeEntry) error
		Delete(ctx context.Context, id string) error
	}

	CategoryRepository interface {
		List(ctx context.Context) []core.Category
	}

	// Publisher announces completed writes. Failures are logged and never
	// affect the write itself.
	Publisher interface {
		PublishEntrySaved(ctx context.Context, e core.FlatTimeEntry, userID string) error
		PublishEntryDeleted(ctx context.Context, id, userID string) error
	}
)

// Snapshot is the index built from one full fetch. It is never modified after
// construction.
type Snapshot struct {
	Entries    *core.Entries
	Categories []core.Category
	FetchedAt  time.Time
}

type Service struct {
	entries    EntryRepository
	categories CategoryRepository
	publisher  Publisher
	now        func() time.Time
	logger     *log.Logger
	snapshots  *cache.LRUCache[*Snapshot]
}

type Config struct {
	Entries    EntryRepository
	Categories CategoryRepository
	Publisher  Publisher
	Now        func() time.Time
	Logger     *log.Logger
	// Snapshot cache sizing; zero values pick defaults.
	MaxUsers    int
	SnapshotTTL time.Duration
}

var ErrNoEntryRepository = errors.New("tracker: entry repository is required")

func NewService(cfg Config) (*Service, error) {
	if cfg.Entries == nil || cfg.Categories == nil {
		return nil, ErrNoEntryRepository
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Discard()
	}
	if cfg.MaxUsers <= 0 {
		cfg.MaxUsers = 128
	}
	if cfg.SnapshotTTL <= 0 {
		cfg.SnapshotTTL = 30 * time.Minute
	}
	return &Service{
		entries:    cfg.Entries,
		categories: cfg.Categories,
		publisher:  cfg.Publisher,
		now:        cfg.Now,
		logger:     cfg.Logger.WithComponent(log.ComponentTracker),
		snapshots:  cache.NewLRUCache[*Snapshot](cfg.MaxUsers, cfg.SnapshotTTL),
	}, nil
}

// Load fetches categories and entries and replaces the caller's snapshot.
func (s *Service) Load(ctx context.Context) *Snapshot {
	cats := s.categories.List(ctx)
	return s.refresh(ctx, cats)
}

// Current returns the caller's last snapshot, loading one if there is none.
func (s *Service) Current(ctx context.Context) *Snapshot {
	if snap, ok := s.snapshots.Get(userKey(ctx)); ok {
		return snap
	}
	return s.Load(ctx)
}

// Save writes the editor payload for date, then refetches every entry. A
// payload without id gets a millisecond timestamp id.
func (s *Service) Save(ctx context.Context, date string, p editor.Payload) (*Snapshot, error) {
	id := p.ID
	if id == "" {
		id = s.NewID()
	}
	entry := core.FlatTimeEntry{
		TimeEntry: core.TimeEntry{
			ID:              id,
			Description:     p.Description,
			DurationMinutes: p.DurationMinutes,
			CategoryID:      p.CategoryID,
		},
		Date: date,
	}
	if err := s.entries.Save(ctx, entry); err != nil {
		s.logger.WarnContext(ctx, "Saving entry failed", log.FieldEntryID, id, log.FieldError, err)
		return nil, err
	}
	if s.publisher != nil {
		if err := s.publisher.PublishEntrySaved(ctx, entry, userID(ctx)); err != nil {
			s.logger.WarnContext(ctx, "Publishing entry saved event failed", log.FieldEntryID, id, log.FieldError, err)
		}
	}
	return s.refresh(ctx, s.currentCategories(ctx)), nil
}

// Delete removes an entry, then refetches every entry.
func (s *Service) Delete(ctx context.Context, id string) (*Snapshot, error) {
	if err := s.entries.Delete(ctx, id); err != nil {
		s.logger.WarnContext(ctx, "Deleting entry failed", log.FieldEntryID, id, log.FieldError, err)
		return nil, err
	}
	if s.publisher != nil {
		if err := s.publisher.PublishEntryDeleted(ctx, id, userID(ctx)); err != nil {
			s.logger.WarnContext(ctx, "Publishing entry deleted event failed", log.FieldEntryID, id, log.FieldError, err)
		}
	}
	return s.refresh(ctx, s.currentCategories(ctx)), nil
}

// NewID returns an id for a new entry: the current time in milliseconds.
func (s *Service) NewID() string {
	return strconv.FormatInt(s.now().UnixMilli(), 10)
}

// Cleaner exposes the snapshot cache for periodic expiry.
func (s *Service) Cleaner() cache.Cleaner {
	return s.snapshots
}

// Forget drops the caller's snapshot, e.g. on sign-out.
func (s *Service) Forget(ctx context.Context) {
	s.snapshots.Delete(userKey(ctx))
}

// Today is the current calendar day.
func (s *Service) Today() string {
	return s.now().Format(core.DateLayout)
}

// Now is the service clock.
func (s *Service) Now() time.Time {
	return s.now()
}

func (s *Service) refresh(ctx context.Context, cats []core.Category) *Snapshot {
	snap := &Snapshot{
		Entries:    core.BuildIndex(s.entries.List(ctx)),
		Categories: cats,
		FetchedAt:  s.now(),
	}
	s.snapshots.Set(userKey(ctx), snap)
	return snap
}

func (s *Service) currentCategories(ctx context.Context) []core.Category {
	if snap, ok := s.snapshots.Get(userKey(ctx)); ok {
		return snap.Categories
	}
	return s.categories.List(ctx)
}

func userID(ctx context.Context) string {
	if id, ok := tables.IdentityFromContext(ctx); ok {
		return id.UserID
	}
	return ""
}

func userKey(ctx context.Context) string {
	if id := userID(ctx); id != "" {
		return id
	}
	return anonymousKey
}

// Package worker mirrors entry change events into a second table, typically
// a Google Sheet kept for reporting.
package worker

import (
	"context"
	"fmt"

	"timetracker/internal/amqp"
	"timetracker/internal/core"
	"timetracker/internal/log"
	"timetracker/internal/store"
	"timetracker/internal/tables"
)

// EntryWriter is the write side of an entry store.
type EntryWriter interface {
	Save(ctx context.Context, e core.FlatTimeEntry) error
	Delete(ctx context.Context, id string) error
}

// EntryFetcher reads every entry, reporting failures instead of hiding them.
type EntryFetcher interface {
	Fetch(ctx context.Context) store.ListResult[core.FlatTimeEntry]
}

type MirrorWorker struct {
	target EntryWriter
	logger *log.Logger
}

func NewMirrorWorker(target EntryWriter, logger *log.Logger) *MirrorWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &MirrorWorker{target: target, logger: logger.WithComponent(log.ComponentWorker)}
}

// HandleEvent applies one change event to the mirror. Returning an error makes
// the consumer requeue the message.
func (w *MirrorWorker) HandleEvent(ctx context.Context, ev *amqp.EntryEvent) error {
	if ev.UserID != "" {
		ctx = tables.WithIdentity(ctx, tables.Identity{UserID: ev.UserID})
	}

	switch ev.Type {
	case amqp.EventEntrySaved:
		entry := ev.Entry()
		if err := w.target.Save(ctx, entry); err != nil {
			return fmt.Errorf("mirror save %s: %w", ev.ID, err)
		}
		w.logger.InfoContext(ctx, "Mirrored entry",
			log.NewFields().WithEntry(entry.ID, entry.Date, entry.DurationMinutes, entry.CategoryID).ToSlice()...)
	case amqp.EventEntryDeleted:
		if err := w.target.Delete(ctx, ev.ID); err != nil {
			return fmt.Errorf("mirror delete %s: %w", ev.ID, err)
		}
		w.logger.InfoContext(ctx, "Removed mirrored entry", log.FieldEntryID, ev.ID)
	default:
		w.logger.WarnContext(ctx, "Ignoring unknown event", log.FieldEventType, ev.Type, log.FieldEntryID, ev.ID)
	}
	return nil
}

// Reconcile copies every source entry that is missing or different in the
// mirror. It recovers from events lost while the worker was down; it never
// deletes mirror rows. ctx should carry no identity so both sides are read
// whole; each copy keeps the owner recorded at the source.
func (w *MirrorWorker) Reconcile(ctx context.Context, source, mirror EntryFetcher) error {
	src := source.Fetch(ctx)
	if src.Failed() {
		return fmt.Errorf("read source entries: %w", src.Err)
	}
	dst := mirror.Fetch(ctx)
	if dst.Failed() {
		return fmt.Errorf("read mirrored entries: %w", dst.Err)
	}
	want, have := src.Items, dst.Items

	current := make(map[string]core.FlatTimeEntry, len(have))
	for _, e := range have {
		current[e.ID] = e
	}

	synced, failed := 0, 0
	for _, e := range want {
		if got, ok := current[e.ID]; ok && got == e {
			continue
		}
		if err := w.target.Save(ctx, e); err != nil {
			w.logger.ErrorContext(ctx, "Failed to mirror entry during reconcile", log.FieldEntryID, e.ID, log.FieldError, err)
			failed++
			continue
		}
		synced++
	}

	w.logger.InfoContext(ctx, "Reconcile completed",
		log.FieldOperation, log.OpSync,
		"total", len(want),
		"synced", synced,
		"errors", failed)
	if failed > 0 {
		return fmt.Errorf("reconcile: %d of %d entries failed", failed, synced+failed)
	}
	return nil
}

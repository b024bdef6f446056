package http

import (
	"context"
	"net/http"
	"sync/atomic"

	"timetracker/internal/core"
	"timetracker/internal/editor"
	"timetracker/internal/export"
	"timetracker/internal/log"
	"timetracker/internal/tables"
	"timetracker/internal/tracker"
)

// pageData is the model of the full tracker page.
type pageData struct {
	User string
	View tracker.MonthView
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/tracker", http.StatusSeeOther)
}

// handleTracker renders the whole page. A full page load always refetches.
func (s *Server) handleTracker(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cursor := ParseCursorParams(r.URL.Query(), s.tracker.Now())
	snap := s.tracker.Load(ctx)

	data := pageData{View: tracker.BuildMonthView(snap, cursor, s.tracker.Today())}
	if id, ok := tables.IdentityFromContext(ctx); ok {
		data.User = id.Email
	}
	s.writeTemplate(w, r, NewHTMXResponse(), "page", data)
}

// handleMonth renders the calendar and day list from the last snapshot. It
// serves month paging, day selection and the Today button.
func (s *Server) handleMonth(w http.ResponseWriter, r *http.Request) {
	cursor := ParseCursorParams(r.URL.Query(), s.tracker.Now())
	snap := s.tracker.Current(r.Context())
	s.writeTemplate(w, r, NewHTMXResponse(), "month", tracker.BuildMonthView(snap, cursor, s.tracker.Today()))
}

// handleSaveEntry saves an entry posted without an editor session.
func (s *Server) handleSaveEntry(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	f := ParseEntryForm(r.PostForm, nil)
	if f.Date == "" {
		f.Date = s.tracker.Today()
	}

	var existing *core.TimeEntry
	if f.ID != "" {
		existing = &core.TimeEntry{ID: f.ID}
	}
	sess := editor.Open(f.Date, existing, nil)
	defer sess.Close()
	if err := sess.Update(f.Description, f.CategoryID, f.Hours, f.Minutes); err != nil {
		InternalServerError(err.Error()).Write(w)
		return
	}
	p, err := sess.Save()
	if err != nil {
		InternalServerError(err.Error()).Write(w)
		return
	}

	cursor := ParseCursorParams(r.PostForm, s.tracker.Now()).Select(f.Date)
	s.saveAndRender(w, r, f.Date, p, cursor, NewHTMXResponse())
}

// saveAndRender writes p and answers with the refreshed month, or with a
// blocking alert when the backend rejects the write.
func (s *Server) saveAndRender(w http.ResponseWriter, r *http.Request, date string, p editor.Payload, cursor tracker.Cursor, resp *HTMXResponseBuilder) bool {
	ctx := r.Context()
	if p.ID == "" {
		p.ID = s.tracker.NewID()
	}
	snap, err := s.tracker.Save(ctx, date, p)
	if err != nil {
		atomic.AddInt64(&s.appMetrics.writeFailures, 1)
		writeFailure(err, saveFailureMessage).Write(w)
		return false
	}
	atomic.AddInt64(&s.appMetrics.entriesSaved, 1)

	log.NewStructuredLogger(log.FromContext(ctx)).LogEntrySaved(ctx, p.ID, date, p.DurationMinutes, p.CategoryID)

	resp.TriggerEntrySaved(p.ID, date).Retarget("#month", "outerHTML")
	s.writeTemplate(w, r, resp, "month", tracker.BuildMonthView(snap, cursor, s.tracker.Today()))
	return true
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := sanitizeInput(r.PathValue("id"))
	if id == "" {
		BadRequestError("Missing entry id").Write(w)
		return
	}

	snap, err := s.tracker.Delete(ctx, id)
	if err != nil {
		atomic.AddInt64(&s.appMetrics.writeFailures, 1)
		writeFailure(err, deleteFailureMessage).Write(w)
		return
	}
	atomic.AddInt64(&s.appMetrics.entriesDeleted, 1)
	log.NewStructuredLogger(log.FromContext(ctx)).LogEntryDeleted(ctx, id)

	cursor := ParseCursorParams(r.URL.Query(), s.tracker.Now())
	resp := NewHTMXResponse().TriggerEntryDeleted(id).Retarget("#month", "outerHTML")
	s.writeTemplate(w, r, resp, "month", tracker.BuildMonthView(snap, cursor, s.tracker.Today()))
}

// handleExport downloads every entry as CSV, from a fresh fetch.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	snap := s.tracker.Load(ctx)

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.FileName(s.tracker.Now())+`"`)
	w.WriteHeader(http.StatusOK)
	if err := export.Write(w, snap.Entries, snap.Categories); err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Writing CSV export failed", log.FieldError, err)
	}
}

func (s *Server) categories(ctx context.Context) []core.Category {
	return s.tracker.Current(ctx).Categories
}

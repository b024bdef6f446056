package http

import (
	"errors"
	"net/http"
	"time"

	"timetracker/internal/core"
	"timetracker/internal/editor"
)

// editorData is the model of the editor modal.
type editorData struct {
	SessionID   string
	Title       string
	EntryID     string
	Date        string
	DateLabel   string
	Month       string
	Description string
	CategoryID  string
	Hours       int
	Minutes     int
	Categories  []core.Category
	Running     bool
	Clock       string
}

func newEditorData(sid string, sess *editor.Session, month string, cats []core.Category) editorData {
	desc, cat, hours, minutes := sess.Form()
	d := editorData{
		SessionID:   sid,
		Title:       sess.Title(),
		EntryID:     sess.EntryID(),
		Date:        sess.Date(),
		DateLabel:   sess.Date(),
		Month:       month,
		Description: desc,
		CategoryID:  cat,
		Hours:       hours,
		Minutes:     minutes,
		Categories:  cats,
		Running:     sess.TimerRunning(),
		Clock:       sess.Clock(),
	}
	if t, err := time.Parse(core.DateLayout, d.Date); err == nil {
		d.DateLabel = t.Format("Mon, Jan 2 2006")
		if d.Month == "" {
			d.Month = t.Format("2006-01")
		}
	}
	return d
}

// handleEditorOpen opens the editor for a new entry, or for the entry named
// by "id" on "date".
func (s *Server) handleEditorOpen(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	ctx := r.Context()
	f := ParseEntryForm(r.Form, nil)
	if f.Date == "" {
		f.Date = s.tracker.Today()
	}

	snap := s.tracker.Current(ctx)
	var entry *core.TimeEntry
	if f.ID != "" {
		for _, te := range snap.Entries.Day(f.Date) {
			if te.ID == f.ID {
				entry = &te
				break
			}
		}
		if entry == nil {
			AlertError(http.StatusNotFound, "Entry not found. Reload the page and try again.").Write(w)
			return
		}
	}

	sid, sess := s.editors.Open(f.Date, entry, snap.Categories)
	s.writeTemplate(w, r, NewHTMXResponse(), "editor",
		newEditorData(sid, sess, r.Form.Get("month"), snap.Categories))
}

// session resolves the editor named in the path and applies any posted
// field values to it. It writes the error response itself.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (string, *editor.Session, bool) {
	sid := r.PathValue("sid")
	sess, err := s.editors.Get(sid)
	if err != nil {
		AlertError(http.StatusNotFound, "Editor session expired. Please reopen the entry.").
			TriggerEditorClosed().
			Write(w)
		return "", nil, false
	}
	if r.Method == http.MethodPost {
		if resp := ParseFormOrFail(r); resp != nil {
			resp.Write(w)
			return "", nil, false
		}
		if _, ok := r.PostForm["description"]; ok {
			f := ParseEntryForm(r.PostForm, nil)
			if err := sess.Update(f.Description, f.CategoryID, f.Hours, f.Minutes); err != nil {
				s.editorGone(w, err)
				return "", nil, false
			}
		}
	}
	return sid, sess, true
}

func (s *Server) editorGone(w http.ResponseWriter, err error) {
	if errors.Is(err, editor.ErrClosed) {
		AlertError(http.StatusGone, "Editor was closed.").TriggerEditorClosed().Write(w)
		return
	}
	InternalServerError(err.Error()).Write(w)
}

func (s *Server) renderEditor(w http.ResponseWriter, r *http.Request, sid string, sess *editor.Session) {
	s.writeTemplate(w, r, NewHTMXResponse(), "editor",
		newEditorData(sid, sess, r.FormValue("month"), s.categories(r.Context())))
}

func (s *Server) handleEditorStart(w http.ResponseWriter, r *http.Request) {
	sid, sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := sess.StartTimer(); err != nil {
		s.editorGone(w, err)
		return
	}
	s.renderEditor(w, r, sid, sess)
}

// handleEditorStop stops the timer; the rounded elapsed time replaces the
// manual hours and minutes.
func (s *Server) handleEditorStop(w http.ResponseWriter, r *http.Request) {
	sid, sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := sess.StopTimer(); err != nil {
		s.editorGone(w, err)
		return
	}
	s.renderEditor(w, r, sid, sess)
}

// handleEditorClock is polled every second while the timer runs.
func (s *Server) handleEditorClock(w http.ResponseWriter, r *http.Request) {
	sid, sess, ok := s.session(w, r)
	if !ok {
		return
	}
	s.writeTemplate(w, r, NewHTMXResponse(), "clock", editorData{
		SessionID: sid,
		Running:   sess.TimerRunning(),
		Clock:     sess.Clock(),
	})
}

// handleEditorSave saves the form. On failure the editor stays open so the
// user can retry.
func (s *Server) handleEditorSave(w http.ResponseWriter, r *http.Request) {
	sid, sess, ok := s.session(w, r)
	if !ok {
		return
	}
	p, err := sess.Save()
	if err != nil {
		s.editorGone(w, err)
		return
	}

	date := sess.Date()
	cursor := ParseCursorParams(r.PostForm, s.tracker.Now()).Select(date)
	if s.saveAndRender(w, r, date, p, cursor, NewHTMXResponse().TriggerEditorClosed()) {
		s.editors.Close(sid)
	}
}

func (s *Server) handleEditorClose(w http.ResponseWriter, r *http.Request) {
	s.editors.Close(r.PathValue("sid"))
	NewHTMXResponse().TriggerEditorClosed().Write(w)
}

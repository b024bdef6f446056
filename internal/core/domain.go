package core

import (
	"errors"
	"regexp"
	"strings"
)

// NoCategoryColor is used for entries whose category cannot be resolved.
const NoCategoryColor = "#cbd5e1"

type (
	TimeEntry struct {
		ID              string
		Description     string
		DurationMinutes int
		CategoryID      string // empty when the entry has no category
	}

	// FlatTimeEntry is a TimeEntry together with its canonical YYYY-MM-DD date
	// and, when the backend records one, the id of the owning user.
	FlatTimeEntry struct {
		TimeEntry
		Date  string
		Owner string
	}

	Category struct {
		ID    string
		Name  string
		Color string
	}
)

var (
	ErrInvalidEntry = errors.New("invalid entry")
	// ErrEmptyID is joined with ErrInvalidEntry wherever an entry id is missing.
	ErrEmptyID      = errors.New("empty entry id")
	ErrInvalidDate  = errors.New("date must be YYYY-MM-DD")
)

var isoDate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// DefaultCategories returns the built-in category set used to seed an empty
// categories table and as a fallback when categories cannot be loaded.
func DefaultCategories() []Category {
	return []Category{
		{ID: "1", Name: "Kundemøde", Color: "#3b82f6"},
		{ID: "2", Name: "Telefontid", Color: "#16a34a"},
		{ID: "3", Name: "Onboarding", Color: "#f97316"},
	}
}

func (e FlatTimeEntry) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return errors.Join(ErrInvalidEntry, ErrEmptyID)
	}
	if !isoDate.MatchString(e.Date) {
		return errors.Join(ErrInvalidEntry, ErrInvalidDate)
	}
	return nil
}

// HasCategory reports whether the entry references a category.
func (e TimeEntry) HasCategory() bool {
	return e.CategoryID != ""
}

// CategoryByID finds a category in cats. The second result is false when no
// category with that id exists.
func CategoryByID(cats []Category, id string) (Category, bool) {
	for _, c := range cats {
		if c.ID == id {
			return c, true
		}
	}
	return Category{}, false
}

// CategoryColor returns the color of the entry's category or NoCategoryColor.
func CategoryColor(cats []Category, id string) string {
	if c, ok := CategoryByID(cats, id); ok && c.Color != "" {
		return c.Color
	}
	return NoCategoryColor
}

package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timetracker/internal/core"
)

func sampleIndex() *core.Entries {
	return core.BuildIndex([]core.FlatTimeEntry{
		{TimeEntry: core.TimeEntry{ID: "1", Description: `Call with "ACME"`, DurationMinutes: 90, CategoryID: "2"}, Date: "2024-03-05"},
		{TimeEntry: core.TimeEntry{ID: "2", Description: "Intro, part 1", DurationMinutes: 125, CategoryID: "3"}, Date: "2024-03-04"},
		{TimeEntry: core.TimeEntry{ID: "3", Description: "Unfiled", DurationMinutes: 1, CategoryID: "42"}, Date: "2024-03-05"},
		{TimeEntry: core.TimeEntry{ID: "4", Description: "", DurationMinutes: 30}, Date: "2024-03-06"},
	})
}

func TestCSV_Literal(t *testing.T) {
	got := CSV(sampleIndex(), core.DefaultCategories())

	want := "Date,Category,Description,Hours\n" +
		`2024-03-05,Telefontid,"Call with ""ACME""",1.50` + "\n" +
		`2024-03-05,,"Unfiled",0.02` + "\n" +
		`2024-03-04,Onboarding,"Intro, part 1",2.08` + "\n" +
		`2024-03-06,,"",0.50`

	assert.Equal(t, want, got)
}

func TestCSV_Empty(t *testing.T) {
	assert.Equal(t, Header, CSV(core.BuildIndex(nil), nil))
	assert.Equal(t, Header, CSV(nil, nil))
}

func TestCSV_ParsesAsCSV(t *testing.T) {
	r := csv.NewReader(strings.NewReader(CSV(sampleIndex(), core.DefaultCategories())))
	records, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 5)
	assert.Equal(t, `Call with "ACME"`, records[1][2])
	assert.Equal(t, "Intro, part 1", records[3][2])
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleIndex(), core.DefaultCategories()))
	assert.True(t, strings.HasPrefix(buf.String(), Header+"\n"))
	assert.False(t, strings.HasSuffix(buf.String(), "\n"))
}

func TestFileName(t *testing.T) {
	now := time.Date(2024, 7, 9, 18, 0, 0, 0, time.UTC)
	assert.Equal(t, "time-export-2024-07-09.csv", FileName(now))
}

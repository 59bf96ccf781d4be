package trainasone

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/claude/trainaspower/internal/ingest"
	"github.com/claude/trainaspower/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const calendarHTML = `<html><body>
<div class="day past"><div class="title">Sun 1 Mar</div>
  <div class="workout"><a href="/plannedWorkout?workoutId=old">Old</a></div></div>
<div class="day today"><div class="title">Today
Mon 2 Mar</div></div>
<div class="day future"><div class="title">Tue 3 Mar</div>
  <div class="workout"><a href="/plannedWorkout?targetUserId=u&amp;workoutId=w123">Intervals</a></div></div>
<div class="day future"><div class="title">Thu 5 Mar</div>
  <div class="summary"><b><a href="https://beta.trainasone.com/plannedWorkout?workoutId=w124">Easy</a></b></div></div>
</body></html>`

const workoutHTML = `<html><body>
<div class="summary"><sup>123</sup> <span>Intervals</span></div>
<div class="detail"><span>1 hour, 2 minutes</span> (6.0 mi)</div>
<div class="workoutSteps"><ol>
  <li class="step step-warmup pace-EASY">Warm up [12:00 - 10:00 /mi] for 10 minutes.</li>
  <li class="step">Repeat the following 3 times
    <ol>
      <li class="step">Recover [13:00 - 11:00 /mi] for 2 minutes.</li>
      <li class="step pace-FAST">Run [07:00 - 06:40 /mi] for 3 minutes.</li>
    </ol>
  </li>
  <li class="step step-cooldown">Run back until you reach home.</li>
</ol></div>
</body></html>`

var testNow = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func TestParseCalendar(t *testing.T) {
	base, _ := url.Parse("https://beta.trainasone.com")
	entries, err := ParseCalendar([]byte(calendarHTML), base, testNow)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC), entries[0].Date)
	assert.Equal(t, "w123", entries[0].WorkoutID)
	assert.Equal(t, "https://beta.trainasone.com/plannedWorkout?targetUserId=u&workoutId=w123", entries[0].URL)

	assert.Equal(t, time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC), entries[1].Date)
	assert.Equal(t, "w124", entries[1].WorkoutID)
}

func TestParseCalendarNoWorkout(t *testing.T) {
	_, err := ParseCalendar([]byte(`<div class="today"><div class="title">Mon 2 Mar</div></div>`), nil, testNow)
	assert.Error(t, err)
}

func TestParseWorkoutPage(t *testing.T) {
	page, err := ParseWorkoutPage([]byte(workoutHTML))
	require.NoError(t, err)

	assert.Equal(t, "123", page.Number)
	assert.Equal(t, "123 Intervals", page.Name())
	assert.Equal(t, models.Q(3720, models.Second), page.Duration)
	assert.Equal(t, models.Q(6, models.Mile), page.Distance)

	require.Len(t, page.Steps, 3)
	assert.Equal(t, []string{"step", "step-warmup", "pace-EASY"}, page.Steps[0].Classes)
	assert.Equal(t, "Warm up [12:00 - 10:00 /mi] for 10 minutes.", page.Steps[0].Text)

	rep := page.Steps[1]
	require.Len(t, rep.Children, 2)
	assert.Contains(t, rep.Text, "Repeat the following 3 times")
	assert.True(t, rep.Children[1].HasClass("pace-FAST"))
	assert.Empty(t, rep.Children[0].Children)

	assert.True(t, page.Steps[2].HasClass("step-cooldown"))
}

func TestSummaryNumberCloudflareProtected(t *testing.T) {
	html := `<div class="summary"><sup><a class="__cf_email__" data-cfemail="42737071">[email protected]</a></sup><span>Easy</span></div>`
	page, err := ParseWorkoutPage([]byte(html))
	require.NoError(t, err)
	assert.Equal(t, "123", page.Number)
	assert.Equal(t, "123 Easy", page.Name())
}

func TestDecodeCloudflareEmail(t *testing.T) {
	got, err := decodeCloudflareEmail("42737071")
	require.NoError(t, err)
	assert.Equal(t, "123", got)

	_, err = decodeCloudflareEmail("427")
	assert.Error(t, err)
}

func TestParseDayTitle(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"Today", time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)},
		{"Tomorrow", time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)},
		{"Tue 3 Mar", time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)},
		{"Wednesday 4 March 2026", time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)},
		{"2026-03-09", time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, err := parseDayTitle(tt.in, testNow)
		if err != nil {
			t.Errorf("parseDayTitle(%q): %v", tt.in, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("parseDayTitle(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	// Early January dates seen in December belong to next year.
	dec := time.Date(2026, 12, 30, 8, 0, 0, 0, time.UTC)
	got, err := parseDayTitle("Sat 2 Jan", dec)
	require.NoError(t, err)
	assert.Equal(t, 2027, got.Year())

	_, err = parseDayTitle("someday", testNow)
	assert.Error(t, err)
}

func TestHTMLSnapshot(t *testing.T) {
	snap, err := HTMLSnapshot([]byte(strings.Replace(workoutHTML, "Intervals", "Perceived Effort Run", 1)))
	require.NoError(t, err)
	assert.Equal(t, ingest.KindHTML, snap.Kind)
	assert.Equal(t, "123", snap.WorkoutID)
	assert.True(t, snap.PerceivedEffort)
	assert.Len(t, snap.Nodes, 3)

	_, err = HTMLSnapshot([]byte(`<div class="summary"><span>Rest day</span></div>`))
	assert.Error(t, err)
}

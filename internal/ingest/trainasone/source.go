package trainasone

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/claude/trainaspower/internal/ingest"
)

const (
	calendarDump = "taocalendar.html"
	workoutDump  = "taoworkout.html"
)

// Options configures a Source.
type Options struct {
	Format             ingest.Kind
	IncludeRunBackStep bool
}

// Source yields TrainAsOne's upcoming workouts as FIT records or rendered
// steps.
type Source struct {
	client *Client
	opts   Options
	log    *slog.Logger
	now    func() time.Time
}

var _ ingest.Source = (*Source)(nil)

// NewSource creates a Source over a logged-in client.
func NewSource(client *Client, opts Options, log *slog.Logger) *Source {
	if opts.Format == "" {
		opts.Format = ingest.KindFIT
	}
	return &Source{client: client, opts: opts, log: log, now: time.Now}
}

// Name identifies the source in logs.
func (s *Source) Name() string { return "trainasone" }

// NextWorkouts returns up to n upcoming workouts. Pages that cannot be
// interpreted come back as *ingest.FetchError carrying the page.
func (s *Source) NextWorkouts(ctx context.Context, n int) ([]ingest.Snapshot, error) {
	s.log.Info("fetching upcoming workouts", "format", s.opts.Format, "count", n)
	calendar, err := s.client.Calendar(ctx)
	if err != nil {
		return nil, &ingest.FetchError{Message: "fetching calendar", Filename: calendarDump, Content: calendar, Err: err}
	}
	entries, err := ParseCalendar(calendar, s.client.BaseURL(), s.now())
	if err != nil {
		return nil, &ingest.FetchError{Message: "finding next workout", Filename: calendarDump, Content: calendar, Err: err}
	}
	if len(entries) > n {
		entries = entries[:n]
	}

	snaps := make([]ingest.Snapshot, 0, len(entries))
	for _, e := range entries {
		snap, err := s.fetch(ctx, e)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

func (s *Source) fetch(ctx context.Context, e CalendarEntry) (ingest.Snapshot, error) {
	body, err := s.client.Page(ctx, e.URL)
	if err != nil {
		return ingest.Snapshot{}, &ingest.FetchError{Message: "fetching workout page", Filename: workoutDump, Content: body, Err: err}
	}
	page, err := ParseWorkoutPage(body)
	if err != nil {
		return ingest.Snapshot{}, &ingest.FetchError{Message: "finding workout steps", Filename: workoutDump, Content: body, Err: err}
	}

	var snap ingest.Snapshot
	switch s.opts.Format {
	case ingest.KindHTML:
		snap = pageSnapshot(page, body)

	case ingest.KindFIT:
		if e.WorkoutID == "" {
			return ingest.Snapshot{}, &ingest.FetchError{Message: "workout link has no id: " + e.URL, Filename: workoutDump, Content: body}
		}
		data, err := s.client.DownloadFIT(ctx, e.WorkoutID, s.opts.IncludeRunBackStep)
		if err != nil {
			return ingest.Snapshot{}, fmt.Errorf("downloading workout %s: %w", e.WorkoutID, err)
		}
		snap, err = FITSnapshot(data)
		if err != nil {
			return ingest.Snapshot{}, &ingest.FetchError{Message: "decoding workout " + e.WorkoutID, Filename: "taoworkout.fit", Content: data, Err: err}
		}
		snap.Duration = page.Duration
		snap.Distance = page.Distance

	default:
		return ingest.Snapshot{}, fmt.Errorf("unknown source format %q", s.opts.Format)
	}
	snap.Date = e.Date

	s.log.Debug("fetched workout", "workout", snap.Name, "date", snap.Date.Format("2006-01-02"))
	return snap, nil
}

// FITSnapshot decodes a downloaded FIT workout file.
func FITSnapshot(data []byte) (ingest.Snapshot, error) {
	title, records, err := DecodeWorkout(data)
	if err != nil {
		return ingest.Snapshot{}, err
	}
	number, _, _ := strings.Cut(title, " ")
	return ingest.Snapshot{
		Kind:            ingest.KindFIT,
		WorkoutID:       number,
		Name:            title,
		PerceivedEffort: isPerceivedEffort(title),
		Records:         records,
		Raw:             data,
	}, nil
}

// HTMLSnapshot parses a saved planned-workout page.
func HTMLSnapshot(body []byte) (ingest.Snapshot, error) {
	page, err := ParseWorkoutPage(body)
	if err != nil {
		return ingest.Snapshot{}, err
	}
	if len(page.Steps) == 0 {
		return ingest.Snapshot{}, errors.New("page has no workout steps")
	}
	return pageSnapshot(page, body), nil
}

func pageSnapshot(page *WorkoutPage, body []byte) ingest.Snapshot {
	return ingest.Snapshot{
		Kind:            ingest.KindHTML,
		WorkoutID:       page.Number,
		Name:            page.Name(),
		Duration:        page.Duration,
		Distance:        page.Distance,
		PerceivedEffort: isPerceivedEffort(page.Title),
		Nodes:           page.Steps,
		Raw:             body,
	}
}

func isPerceivedEffort(title string) bool {
	return strings.Contains(title, "Perceived Effort")
}

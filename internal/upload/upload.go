package upload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/claude/trainaspower/internal/ingest"
	"github.com/claude/trainaspower/internal/models"
	"github.com/claude/trainaspower/internal/workout"
	"github.com/google/uuid"
)

// Destination is the calendar workouts are pushed to.
type Destination interface {
	ExistingWorkout(ctx context.Context, date time.Time) (key string, found bool, err error)
	SaveWorkout(ctx context.Context, save WorkoutSave) (string, error)
	SaveBuilder(ctx context.Context, key string, req BuilderRequest) error
	DeleteWorkout(ctx context.Context, key string) error
}

// Stats tracks sync progress.
type Stats struct {
	RunID string

	WorkoutsFetched   int
	WorkoutsCreated   int
	WorkoutsUpdated   int
	WorkoutsUnchanged int
	WorkoutsRemoved   int
	WorkoutsErrored   int

	SnapshotsSaved int
}

// Options configures an Uploader.
type Options struct {
	NumberOfWorkouts int
	Adjust           models.PowerAdjust
	PaceOnly         bool
	DryRun           bool
}

// Uploader fetches upcoming workouts, converts them to power and syncs them
// to the destination, removing workouts that were cancelled in between.
type Uploader struct {
	source ingest.Source
	dest   Destination
	power  workout.PowerSource
	state  *StateDB
	opts   Options
	log    *slog.Logger
	now    func() time.Time
	stats  Stats
}

// New creates a new Uploader.
func New(source ingest.Source, dest Destination, power workout.PowerSource, state *StateDB, opts Options, log *slog.Logger) *Uploader {
	if opts.NumberOfWorkouts <= 0 {
		opts.NumberOfWorkouts = 1
	}
	return &Uploader{
		source: source,
		dest:   dest,
		power:  power,
		state:  state,
		opts:   opts,
		log:    log,
		now:    time.Now,
	}
}

// Run executes one sync pass. A workout that fails to convert is skipped
// with its source saved for debugging; the first such error is returned
// after the remaining workouts have been processed.
func (u *Uploader) Run(ctx context.Context) (*Stats, error) {
	u.stats = Stats{RunID: uuid.NewString()}
	log := u.log.With("run", u.stats.RunID)
	if r, ok := u.power.(workout.Resetter); ok {
		r.Reset()
	}

	snaps, err := u.source.NextWorkouts(ctx, u.opts.NumberOfWorkouts)
	if err != nil {
		var fe *ingest.FetchError
		if errors.As(err, &fe) {
			u.saveSnapshot(ctx, log, DebugSnapshot{Kind: "fetch", Filename: fe.Filename, Content: fe.Content, Error: fe.Error()})
		}
		return &u.stats, fmt.Errorf("fetching workouts from %s: %w", u.source.Name(), err)
	}
	u.stats.WorkoutsFetched = len(snaps)
	log.Info("fetched workouts", "source", u.source.Name(), "count", len(snaps))

	var firstErr error
	start := startOfDay(u.now())
	for _, snap := range snaps {
		day := startOfDay(snap.Date)
		for d := start; d.Before(day); d = d.AddDate(0, 0, 1) {
			if err := u.removeWorkout(ctx, log, d); err != nil {
				return &u.stats, err
			}
		}
		start = day.AddDate(0, 0, 1)

		if err := u.syncWorkout(ctx, log, snap); err != nil {
			u.stats.WorkoutsErrored++
			log.Error("workout failed", "workout", snap.Name, "date", day.Format("2006-01-02"), "error", err)
			u.saveSnapshot(ctx, log, DebugSnapshot{
				Kind:     string(snap.Kind),
				Filename: snap.Filename(),
				Content:  snap.Raw,
				Error:    err.Error(),
			})
			if firstErr == nil {
				firstErr = fmt.Errorf("syncing %q: %w", snap.Name, err)
			}
		}
	}
	return &u.stats, firstErr
}

// BuildWorkout converts a snapshot into a power-target workout.
func BuildWorkout(ctx context.Context, power workout.PowerSource, adjust models.PowerAdjust, snap ingest.Snapshot) (*models.Workout, error) {
	w := &models.Workout{
		Name:     snap.Name,
		ID:       snap.WorkoutID,
		Date:     snap.Date,
		Duration: snap.Duration,
		Distance: snap.Distance,
	}

	var err error
	switch snap.Kind {
	case ingest.KindFIT:
		w.Steps, err = workout.FromRecords(ctx, power, adjust, snap.PerceivedEffort, snap.Records)
	case ingest.KindHTML:
		w.Steps, err = workout.FromText(ctx, power, adjust, snap.Nodes)
	default:
		return nil, fmt.Errorf("unknown snapshot kind %q", snap.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("converting %q: %w", snap.Name, err)
	}
	if len(w.Steps) == 0 {
		return nil, fmt.Errorf("converting %q: no steps", snap.Name)
	}
	return w, nil
}

func (u *Uploader) syncWorkout(ctx context.Context, log *slog.Logger, snap ingest.Snapshot) error {
	w, err := BuildWorkout(ctx, u.power, u.opts.Adjust, snap)
	if err != nil {
		return err
	}
	doc, err := ConvertWorkout(w, ConvertOptions{PaceOnly: u.opts.PaceOnly})
	if err != nil {
		return fmt.Errorf("serializing: %w", err)
	}
	req := NewBuilderRequest(doc)
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshaling document: %w", err)
	}
	hash := HashDocument(data)
	date := w.Date.Format("2006-01-02")

	if u.opts.DryRun {
		log.Info("dry-run: would sync workout", "workout", w.Name, "date", date, "steps", w.CountSteps())
		log.Debug("dry-run document", "workout", w.Name, "document", string(data))
		return nil
	}

	key, found, err := u.dest.ExistingWorkout(ctx, w.Date)
	if err != nil {
		return err
	}
	if found {
		synced, err := u.state.IsSynced(ctx, w.ID, key, hash)
		if err != nil {
			return fmt.Errorf("checking state: %w", err)
		}
		if synced {
			u.stats.WorkoutsUnchanged++
			log.Info("workout unchanged", "workout", w.Name, "date", date)
			return nil
		}
		log.Info("updating workout", "workout", w.Name, "date", date, "key", key)
	} else {
		log.Info("posting workout", "workout", w.Name, "date", date)
	}

	save, err := ConvertWorkoutSave(w, key)
	if err != nil {
		return err
	}
	key, err = u.dest.SaveWorkout(ctx, save)
	if err != nil {
		return err
	}
	if err := u.dest.SaveBuilder(ctx, key, req); err != nil {
		return err
	}

	if err := u.state.MarkSynced(ctx, SyncedWorkout{
		WorkoutID:      w.ID,
		Date:           date,
		Name:           w.Name,
		DestinationKey: key,
		DocumentHash:   hash,
		DocumentJSON:   string(data),
	}); err != nil {
		log.Warn("failed to mark synced", "workout", w.Name, "error", err)
	}
	if found {
		u.stats.WorkoutsUpdated++
	} else {
		u.stats.WorkoutsCreated++
	}
	return nil
}

// removeWorkout deletes a previously synced workout on day, which is no
// longer planned.
func (u *Uploader) removeWorkout(ctx context.Context, log *slog.Logger, day time.Time) error {
	key, found, err := u.dest.ExistingWorkout(ctx, day)
	if err != nil {
		return fmt.Errorf("checking cancelled workout: %w", err)
	}
	if !found {
		return nil
	}
	date := day.Format("2006-01-02")
	if u.opts.DryRun {
		log.Info("dry-run: would delete workout", "date", date, "key", key)
		return nil
	}
	log.Info("deleting cancelled workout", "date", date, "key", key)
	if err := u.dest.DeleteWorkout(ctx, key); err != nil {
		return err
	}
	if err := u.state.ForgetDate(ctx, date); err != nil {
		log.Warn("failed to forget workout", "date", date, "error", err)
	}
	u.stats.WorkoutsRemoved++
	return nil
}

func (u *Uploader) saveSnapshot(ctx context.Context, log *slog.Logger, snap DebugSnapshot) {
	if u.state == nil || len(snap.Content) == 0 {
		return
	}
	id, err := u.state.SaveSnapshot(ctx, snap)
	if err != nil {
		log.Warn("failed to save debug snapshot", "file", snap.Filename, "error", err)
		return
	}
	u.stats.SnapshotsSaved++
	log.Error("saved source for debugging", "snapshot", id, "file", snap.Filename, "dir", u.state.Dir())
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

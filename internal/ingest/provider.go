// Package ingest defines where planned workouts come from.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/claude/trainaspower/internal/models"
)

// Kind is the representation a Snapshot carries its steps in.
type Kind string

const (
	KindFIT  Kind = "fit"
	KindHTML Kind = "html"
)

// ParseKind validates a configured source format.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindFIT, KindHTML:
		return Kind(s), nil
	}
	return "", fmt.Errorf("unknown source format %q (want fit or html)", s)
}

// Snapshot is one planned workout as fetched, before conversion. Exactly one
// of Records or Nodes is populated, according to Kind.
type Snapshot struct {
	Kind      Kind
	WorkoutID string
	Name      string
	Date      time.Time
	Duration  models.Quantity
	Distance  models.Quantity

	// PerceivedEffort marks sessions targeted by feel rather than pace.
	PerceivedEffort bool

	Records []models.StepRecord
	Nodes   []models.TextStep

	// Raw is the downloaded source (FIT bytes or workout page HTML).
	Raw []byte
}

// Filename is the name a raw snapshot is dumped under.
func (s Snapshot) Filename() string {
	if s.Kind == KindFIT {
		return "taoworkout.fit"
	}
	return "taoworkout.html"
}

// Source yields upcoming planned workouts in date order.
type Source interface {
	Name() string
	NextWorkouts(ctx context.Context, n int) ([]Snapshot, error)
}

// FetchError reports a page or file the source could not interpret. Content
// holds the raw response so it can be saved for debugging.
type FetchError struct {
	Message  string
	Filename string
	Content  []byte
	Err      error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *FetchError) Unwrap() error { return e.Err }

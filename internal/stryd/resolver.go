package stryd

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/claude/trainaspower/internal/models"
	"golang.org/x/sync/singleflight"
)

// curveWindow is how far back the power-duration curve looks.
const curveWindow = 90 * 24 * time.Hour

// Service is the prediction backend the Resolver queries.
type Service interface {
	PowerForTime(ctx context.Context, seconds int) (float64, error)
	SuggestedRangeForDistance(ctx context.Context, meters float64) (float64, float64, error)
	PowerCurve(ctx context.Context, start, end time.Time) ([]float64, error)
	CriticalPower(ctx context.Context) (float64, error)
}

// Resolver maps paces, distances and durations to power. Pace lookups are
// memoized per rounded seconds-per-mile key and critical power is fetched
// at most once, for the Resolver's lifetime or until Reset.
type Resolver struct {
	svc Service
	now func() time.Time

	mu     sync.Mutex
	powers map[int]float64
	cp     *float64
	group  singleflight.Group
}

// NewResolver creates a Resolver backed by svc.
func NewResolver(svc Service) *Resolver {
	return &Resolver{
		svc:    svc,
		now:    time.Now,
		powers: make(map[int]float64),
	}
}

// Reset drops every cached value.
func (r *Resolver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.powers = make(map[int]float64)
	r.cp = nil
}

func (r *Resolver) cached(seconds int) (float64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.powers[seconds]
	return p, ok
}

// PowerFromPace returns the power equivalent of pace. Paces that round to
// zero or less seconds per mile map to 0 without a lookup.
func (r *Resolver) PowerFromPace(ctx context.Context, pace models.Quantity) (float64, error) {
	perMile, err := pace.ConvertTo(models.SecondPerMile)
	if err != nil {
		return 0, err
	}
	seconds := int(math.Round(perMile.Value))
	if seconds <= 0 {
		return 0, nil
	}
	if p, ok := r.cached(seconds); ok {
		return p, nil
	}

	v, err, _ := r.group.Do("pace:"+strconv.Itoa(seconds), func() (any, error) {
		if p, ok := r.cached(seconds); ok {
			return p, nil
		}
		p, err := r.svc.PowerForTime(ctx, seconds)
		if err != nil {
			return 0.0, err
		}
		r.mu.Lock()
		r.powers[seconds] = p
		r.mu.Unlock()
		return p, nil
	})
	if err != nil {
		return 0, fmt.Errorf("predicting power for %d s/mi: %w", seconds, err)
	}
	return v.(float64), nil
}

// ConvertPaceRange converts both ends independently. The result is not
// reordered if the service is non-monotonic around the query points.
func (r *Resolver) ConvertPaceRange(ctx context.Context, pace models.PaceRange) (models.PowerRange, error) {
	low, err := r.PowerFromPace(ctx, pace.Min)
	if err != nil {
		return models.PowerRange{}, err
	}
	high, err := r.PowerFromPace(ctx, pace.Max)
	if err != nil {
		return models.PowerRange{}, err
	}
	return models.NewPowerRange(low, high), nil
}

// SuggestedRangeForDistance returns the race power range Stryd suggests for
// a race of the given length.
func (r *Resolver) SuggestedRangeForDistance(ctx context.Context, distance models.Quantity) (models.PowerRange, error) {
	meters, err := distance.Meters()
	if err != nil {
		return models.PowerRange{}, err
	}
	low, high, err := r.svc.SuggestedRangeForDistance(ctx, meters)
	if err != nil {
		return models.PowerRange{}, fmt.Errorf("suggesting power for %.0f m: %w", meters, err)
	}
	return models.NewPowerRange(low, high), nil
}

// SuggestedRangeForTime reads the athlete's trailing power-duration curve at
// the step's duration and returns [p-5, p+10].
func (r *Resolver) SuggestedRangeForTime(ctx context.Context, duration models.Quantity) (models.PowerRange, error) {
	secs, err := duration.Seconds()
	if err != nil {
		return models.PowerRange{}, err
	}
	end := r.now()
	curve, err := r.svc.PowerCurve(ctx, end.Add(-curveWindow), end)
	if err != nil {
		return models.PowerRange{}, fmt.Errorf("fetching power curve: %w", err)
	}
	if len(curve) == 0 {
		return models.PowerRange{}, errors.New("power curve is empty")
	}

	idx := int(math.Round(secs)) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(curve) {
		idx = len(curve) - 1
	}
	p := curve[idx]
	return models.NewPowerRange(p-5, p+10), nil
}

// CriticalPower returns the athlete's critical power, fetched once.
func (r *Resolver) CriticalPower(ctx context.Context) (float64, error) {
	r.mu.Lock()
	if r.cp != nil {
		cp := *r.cp
		r.mu.Unlock()
		return cp, nil
	}
	r.mu.Unlock()

	v, err, _ := r.group.Do("cp", func() (any, error) {
		r.mu.Lock()
		if r.cp != nil {
			cp := *r.cp
			r.mu.Unlock()
			return cp, nil
		}
		r.mu.Unlock()

		cp, err := r.svc.CriticalPower(ctx)
		if err != nil {
			return 0.0, err
		}
		r.mu.Lock()
		r.cp = &cp
		r.mu.Unlock()
		return cp, nil
	})
	if err != nil {
		return 0, fmt.Errorf("fetching critical power: %w", err)
	}
	return v.(float64), nil
}

package predictor

import (
	"math"

	"github.com/fincast-io/fincast/internal/domain"
	"github.com/fincast-io/fincast/internal/forecast/timeseries"
)

// ─── Accounts Receivable Aging ──────────────────────────────────────────────

// AgingBucket classifies outstanding receivable balance by days overdue.
type AgingBucket int

const (
	BucketCurrent AgingBucket = iota // 0-30 days
	BucketLate                       // 31-45 days
	BucketOverdue                    // 46-60 days
	BucketStale                      // 60+ days
)

var bucketNames = map[AgingBucket]string{
	BucketCurrent: "0-30",
	BucketLate:    "31-45",
	BucketOverdue: "46-60",
	BucketStale:   "60+",
}

func (b AgingBucket) String() string {
	if s, ok := bucketNames[b]; ok {
		return s
	}
	return "unknown"
}

// MarshalText lets buckets serve as JSON map keys in API payloads.
func (b AgingBucket) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *AgingBucket) UnmarshalText(text []byte) error {
	for bucket, name := range bucketNames {
		if name == string(text) {
			*b = bucket
			return nil
		}
	}
	return domain.ErrUnknownAgingBucket
}

// BucketFor classifies an age in days. Negative ages count as current.
func BucketFor(ageDays int) AgingBucket {
	switch {
	case ageDays <= 30:
		return BucketCurrent
	case ageDays <= 45:
		return BucketLate
	case ageDays <= 60:
		return BucketOverdue
	default:
		return BucketStale
	}
}

// AgingSchedule maps each bucket to its outstanding balance.
type AgingSchedule map[AgingBucket]float64

// Total is the open balance across all buckets.
func (s AgingSchedule) Total() float64 {
	var total float64
	for _, balance := range s {
		total += balance
	}
	return total
}

// collectionPattern gives the fraction of a bucket's balance expected to
// collect in each of the next four weeks. Younger balance collects later;
// stale balance dribbles in at the back of the window.
var collectionPattern = map[AgingBucket][4]float64{
	BucketCurrent: {0.30, 0.40, 0.20, 0.10},
	BucketLate:    {0.20, 0.40, 0.30, 0.10},
	BucketOverdue: {0.10, 0.30, 0.40, 0.20},
	BucketStale:   {0.05, 0.15, 0.30, 0.30},
}

// weeklyTrickle is the share of the total open balance assumed to collect
// each week on top of the scheduled pattern, standing in for invoices
// raised during the horizon.
const weeklyTrickle = 0.05

// arVolatility and arIntervalScale are fixed: the schedule itself is
// deterministic, the uncertainty is payer behavior.
const (
	arVolatility    = 0.15
	arIntervalScale = 0.3
)

// AgingProjector forecasts AR collections from the invoice aging schedule
// instead of the category's transaction history.
type AgingProjector struct {
	schedule AgingSchedule
}

// NewAgingProjector copies the schedule; later mutation of the caller's
// map does not affect projections.
func NewAgingProjector(schedule AgingSchedule) *AgingProjector {
	copied := make(AgingSchedule, len(schedule))
	for bucket, balance := range schedule {
		copied[bucket] = balance
	}
	return &AgingProjector{schedule: copied}
}

// OpenBalance is the total amount outstanding.
func (ap *AgingProjector) OpenBalance() float64 { return ap.schedule.Total() }

// Project forecasts weekly collections for the horizon. Weeks past the
// four-week pattern reuse the final week's fraction, and every week adds
// the balance trickle.
func (ap *AgingProjector) Project(horizon int) (domain.CategoryForecast, error) {
	if horizon <= 0 {
		return domain.CategoryForecast{}, domain.ErrInvalidHorizon
	}

	total := ap.OpenBalance()
	preds := make([]float64, horizon)
	for week := 0; week < horizon; week++ {
		slot := week
		if slot > 3 {
			slot = 3
		}
		var collected float64
		for bucket, balance := range ap.schedule {
			collected += balance * collectionPattern[bucket][slot]
		}
		preds[week] = math.Max(0, collected+total*weeklyTrickle)
	}

	return domain.CategoryForecast{
		Category:           domain.ARCollections,
		WeeklyPredictions:  preds,
		ConfidenceInterval: timeseries.PopStdDev(preds) * arIntervalScale,
		Trend:              domain.TrendStable,
		Volatility:         arVolatility,
	}, nil
}

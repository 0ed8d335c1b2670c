// Package anomaly scans aggregated per-signature histograms and emits
// classified findings. Detection runs once after end of input in batch
// mode, or on a cadence while tailing.
package anomaly

import (
	"fmt"
	"sort"
	"time"

	"github.com/gourav-shinde/jlog/internal/aggregate"
	"github.com/gourav-shinde/jlog/internal/model"
)

// Source is the read-only borrow of aggregator state the detector scans.
// A *aggregate.Aggregator satisfies it; the detector never mutates it.
type Source interface {
	Granularity() time.Duration
	Buckets() []*aggregate.Bucket
	Signatures() map[string]*aggregate.SignatureStat
	ErrorOrWorse() int64
}

// Detector classifies message signatures against a fixed threshold set.
type Detector struct {
	th Thresholds
}

// New returns a detector; zero threshold fields take defaults.
func New(th Thresholds) *Detector {
	return &Detector{th: th.withDefaults()}
}

// Thresholds returns the effective threshold set.
func (d *Detector) Thresholds() Thresholds { return d.th }

type signatureShape struct {
	total      int64
	peak       int64
	occupied   int64
	firstHalf  int64
	secondHalf int64
}

// Detect scans src and returns findings ordered by descending severity,
// then descending total count. Each qualifying signature is reported
// once, under the first rule it matches: Burst, Spike, Recurring,
// Increasing, HighVolume. A fresh call produces a fresh, independent
// result set.
func (d *Detector) Detect(src Source) []model.DetectedPattern {
	buckets := src.Buckets()
	sigs := src.Signatures()
	if len(sigs) == 0 {
		return nil
	}

	// Total buckets in range counts the whole span between first and
	// last bucket, not just the lazily created ones.
	var rangeBuckets int64
	var midpoint time.Time
	if len(buckets) > 0 {
		g := src.Granularity()
		span := buckets[len(buckets)-1].Start.Sub(buckets[0].Start) + g
		rangeBuckets = int64(span / g)
		midpoint = buckets[0].Start.Add(span / 2)
	}

	shapes := make(map[string]*signatureShape, len(sigs))
	for sig, stat := range sigs {
		if stat.Count >= d.th.MinOccurrences {
			shapes[sig] = &signatureShape{total: stat.Count}
		}
	}
	for _, b := range buckets {
		secondHalf := !b.Start.Before(midpoint)
		for sig, count := range b.BySignature {
			shape, ok := shapes[sig]
			if !ok {
				continue
			}
			shape.occupied++
			if count > shape.peak {
				shape.peak = count
			}
			if secondHalf {
				shape.secondHalf += count
			} else {
				shape.firstHalf += count
			}
		}
	}

	errorOrWorse := src.ErrorOrWorse()
	var out []model.DetectedPattern
	for sig, shape := range shapes {
		if p, ok := d.classify(sig, sigs[sig].Example, shape, rangeBuckets, errorOrWorse); ok {
			out = append(out, p)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Severity != out[j].Severity {
			return out[i].Severity > out[j].Severity
		}
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Signature < out[j].Signature
	})
	return out
}

func (d *Detector) classify(sig, example string, s *signatureShape, rangeBuckets, errorOrWorse int64) (model.DetectedPattern, bool) {
	p := model.DetectedPattern{
		Signature:       sig,
		Example:         example,
		Count:           s.total,
		PeakCount:       s.peak,
		FirstHalfCount:  s.firstHalf,
		SecondHalfCount: s.secondHalf,
	}
	if rangeBuckets > 0 {
		p.AvgCount = float64(s.total) / float64(rangeBuckets)
		p.OccupiedFraction = float64(s.occupied) / float64(rangeBuckets)
	}

	// Spike and Increasing need at least two buckets of history.
	enoughRange := rangeBuckets >= 2

	// Burst is checked before Spike: a qualifying Burst always satisfies
	// the Spike inequality too (its peak is at least total/occupied,
	// which exceeds 3x the range average once occupancy drops under
	// 30%), so the more specific shape has to win for both kinds to be
	// reachable.
	switch {
	case rangeBuckets > 0 && p.OccupiedFraction < d.th.BurstMaxOccupiedFraction && s.total >= d.th.BurstMinOccurrences:
		p.Kind = model.PatternBurst
		p.Severity = model.SeverityWarning
		p.Description = fmt.Sprintf("%d occurrences packed into %.0f%% of the time range", s.total, p.OccupiedFraction*100)

	case enoughRange && float64(s.peak) > d.th.SpikeFactor*p.AvgCount:
		p.Kind = model.PatternSpike
		p.Severity = model.SeverityWarning
		if s.peak >= d.th.SpikeCriticalPeak {
			p.Severity = model.SeverityCritical
		}
		p.Description = fmt.Sprintf("peak of %d in one bucket vs %.1f average", s.peak, p.AvgCount)

	case rangeBuckets > 0 && p.OccupiedFraction > d.th.RecurringMinOccupiedFraction:
		p.Kind = model.PatternRecurring
		p.Severity = model.SeverityWarning
		if s.total < d.th.RecurringInfoMaxOccurrences {
			p.Severity = model.SeverityInfo
		}
		p.Description = fmt.Sprintf("present in %.0f%% of the time range (%d occurrences)", p.OccupiedFraction*100, s.total)

	case enoughRange && s.firstHalf > 0 && float64(s.secondHalf) >= d.th.IncreasingFactor*float64(s.firstHalf):
		p.Kind = model.PatternIncreasing
		p.Severity = model.SeverityWarning
		p.Description = fmt.Sprintf("rate rising: %d in first half vs %d in second", s.firstHalf, s.secondHalf)

	case errorOrWorse > 0 && float64(s.total) > d.th.HighVolumeFraction*float64(errorOrWorse):
		p.Kind = model.PatternHighVolume
		p.Severity = model.SeverityCritical
		p.Description = fmt.Sprintf("%d occurrences, over %.0f%% of all error-level entries", s.total, d.th.HighVolumeFraction*100)

	default:
		return model.DetectedPattern{}, false
	}

	return p, true
}

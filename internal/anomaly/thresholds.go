package anomaly

// Thresholds is the single tunable set driving pattern classification.
// Values are fixed per run; zero fields are filled from defaults at
// detector construction.
type Thresholds struct {
	// MinOccurrences is the least total count a signature needs before
	// it is considered at all.
	MinOccurrences int64 `yaml:"min-occurrences"`

	// Spike: peak bucket count exceeds SpikeFactor times the average
	// bucket count. Critical when the peak reaches SpikeCriticalPeak.
	SpikeFactor       float64 `yaml:"spike-factor"`
	SpikeCriticalPeak int64   `yaml:"spike-critical-peak"`

	// Burst: occupied-bucket fraction below BurstMaxOccupiedFraction
	// with at least BurstMinOccurrences total occurrences.
	BurstMaxOccupiedFraction float64 `yaml:"burst-max-occupied-fraction"`
	BurstMinOccurrences      int64   `yaml:"burst-min-occurrences"`

	// Recurring: occupied-bucket fraction above
	// RecurringMinOccupiedFraction. Info severity below
	// RecurringInfoMaxOccurrences total occurrences.
	RecurringMinOccupiedFraction float64 `yaml:"recurring-min-occupied-fraction"`
	RecurringInfoMaxOccurrences  int64   `yaml:"recurring-info-max-occurrences"`

	// Increasing: second-half total at least IncreasingFactor times the
	// first-half total, with a non-empty first half.
	IncreasingFactor float64 `yaml:"increasing-factor"`

	// HighVolume: one signature exceeds HighVolumeFraction of all
	// error-or-worse entries in the run.
	HighVolumeFraction float64 `yaml:"high-volume-fraction"`
}

// DefaultThresholds returns the stock classification thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinOccurrences:               2,
		SpikeFactor:                  3.0,
		SpikeCriticalPeak:            10,
		BurstMaxOccupiedFraction:     0.30,
		BurstMinOccurrences:          5,
		RecurringMinOccupiedFraction: 0.40,
		RecurringInfoMaxOccurrences:  10,
		IncreasingFactor:             2.0,
		HighVolumeFraction:           0.25,
	}
}

func (t Thresholds) withDefaults() Thresholds {
	def := DefaultThresholds()
	if t.MinOccurrences <= 0 {
		t.MinOccurrences = def.MinOccurrences
	}
	if t.SpikeFactor <= 0 {
		t.SpikeFactor = def.SpikeFactor
	}
	if t.SpikeCriticalPeak <= 0 {
		t.SpikeCriticalPeak = def.SpikeCriticalPeak
	}
	if t.BurstMaxOccupiedFraction <= 0 {
		t.BurstMaxOccupiedFraction = def.BurstMaxOccupiedFraction
	}
	if t.BurstMinOccurrences <= 0 {
		t.BurstMinOccurrences = def.BurstMinOccurrences
	}
	if t.RecurringMinOccupiedFraction <= 0 {
		t.RecurringMinOccupiedFraction = def.RecurringMinOccupiedFraction
	}
	if t.RecurringInfoMaxOccurrences <= 0 {
		t.RecurringInfoMaxOccurrences = def.RecurringInfoMaxOccurrences
	}
	if t.IncreasingFactor <= 0 {
		t.IncreasingFactor = def.IncreasingFactor
	}
	if t.HighVolumeFraction <= 0 {
		t.HighVolumeFraction = def.HighVolumeFraction
	}
	return t
}

package telemetry

const (
	psiPerMbar    = 0.0145038
	maxDisplayPsi = 40
)

// Thresholds are the per-vehicle constants the derived computations need.
type Thresholds struct {
	SafeOilTemp int // below this the engine counts as cold
}

// Extremes accumulates running maxima for the duration of a drive.
// MaxCold RPM resets once the oil warms past the safe threshold;
// everything else only resets on power-up.
type Extremes struct {
	MaxBoostPsi  float32
	MaxBoostRPM  int
	MaxBoostGear int
	MaxColdRPM   int
}

// Fusion recomputes the derived values once per display cycle from a
// fresh snapshot copy.
type Fusion struct {
	th       Thresholds
	BoostPsi float32
	Extremes Extremes
}

func NewFusion(th Thresholds) *Fusion {
	return &Fusion{th: th}
}

// BoostPsiFrom converts absolute boost to gauge pressure, clamped to the
// 0-40 psi display range.
func BoostPsiFrom(boostMbar, atmosphericMbar int) float32 {
	psi := float32(boostMbar-atmosphericMbar) * psiPerMbar
	if psi < 0 {
		psi = 0
	}
	if psi > maxDisplayPsi {
		psi = maxDisplayPsi
	}
	return psi
}

// Update derives boost and advances the running maxima. An implausible
// atmospheric pressure suppresses the boost computation for the cycle,
// otherwise the running maximum would be nonsense.
func (f *Fusion) Update(snap Snapshot) {
	if snap.AtmosphericPressure > 0 {
		f.BoostPsi = BoostPsiFrom(snap.BoostPressure, snap.AtmosphericPressure)
		if f.BoostPsi > f.Extremes.MaxBoostPsi {
			f.Extremes.MaxBoostPsi = f.BoostPsi
			f.Extremes.MaxBoostRPM = snap.EngineRPM
			f.Extremes.MaxBoostGear = snap.Gear
		}
	} else {
		f.BoostPsi = 0
	}

	if snap.EngineOilTemp < f.th.SafeOilTemp {
		if snap.EngineRPM > f.Extremes.MaxColdRPM {
			f.Extremes.MaxColdRPM = snap.EngineRPM
		}
	} else {
		// engine is warmed up
		f.Extremes.MaxColdRPM = 0
	}
}

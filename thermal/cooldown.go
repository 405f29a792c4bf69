// Package thermal estimates how long the turbo needs to cool down after
// a drive. There is no turbo temperature sensor, so peak engine speed
// and exhaust gas temperature stand in for thermal load.
package thermal

import (
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tomsel/datadash/telemetry"
	"github.com/tomsel/datadash/timer"
)

// Tier maps a thermal load bucket to a cooldown duration. Tiers are
// ordered most severe first; the first one exceeded wins.
type Tier struct {
	EngineRPM      int
	ExhaustGasTemp int // celsius
	Cooldown       time.Duration
}

type Config struct {
	Tiers            []Tier
	Window           time.Duration // observation window, ~5s
	ColdOilTemp      int           // below this the turbo is assumed cold too
	SpiritedBoostPsi float32       // above this assume spirited driving
}

// Estimator samples peak RPM and EGT over a rolling window and drives a
// cooldown countdown that can be extended but never shortened.
type Estimator struct {
	cfg      Config
	window   *timer.Countdown
	cooldown *timer.Countdown
	peakRPM  int
	peakEGT  int
}

func New(cfg Config, clock timer.Clock) *Estimator {
	e := &Estimator{
		cfg:      cfg,
		window:   timer.New(clock),
		cooldown: timer.New(clock),
	}
	e.window.Start(cfg.Window)
	return e
}

func (e *Estimator) maxCooldown() time.Duration {
	if len(e.cfg.Tiers) == 0 {
		return 0
	}
	return e.cfg.Tiers[0].Cooldown
}

// Observe feeds one display-cycle sample. While the window is open it
// only tracks peaks; on expiry it classifies the load, applies the
// overrides, extends the countdown, and restarts the window seeded with
// the instantaneous values so no sample is lost at the boundary.
func (e *Estimator) Observe(snap telemetry.Snapshot, boostPsi float32) {
	if !e.window.Expired() {
		if snap.EngineRPM > e.peakRPM {
			e.peakRPM = snap.EngineRPM
		}
		if snap.ExhaustGasTemp > e.peakEGT {
			e.peakEGT = snap.ExhaustGasTemp
		}
		return
	}

	duration := e.classify()

	// a cold engine implies a cold turbo
	if snap.EngineOilTemp < e.cfg.ColdOilTemp {
		duration = 0
	}
	// high boost means spirited driving no matter what RPM and EGT say
	if boostPsi > e.cfg.SpiritedBoostPsi {
		duration = e.maxCooldown()
	}

	if e.cooldown.ExtendTo(duration) {
		log.WithField("cooldown", duration).
			WithField("peakRPM", e.peakRPM).
			WithField("peakEGT", e.peakEGT).
			Debug("turbo cooldown extended")
	}

	e.window.Start(e.cfg.Window)
	e.peakRPM = snap.EngineRPM
	e.peakEGT = snap.ExhaustGasTemp
}

func (e *Estimator) classify() time.Duration {
	for _, t := range e.cfg.Tiers {
		if e.peakRPM > t.EngineRPM || e.peakEGT > t.ExhaustGasTemp {
			return t.Cooldown
		}
	}
	return 0
}

// CoolingDown reports whether the countdown is still running.
func (e *Estimator) CoolingDown() bool {
	return !e.cooldown.Expired()
}

// Remaining is the time left on the countdown.
func (e *Estimator) Remaining() time.Duration {
	return e.cooldown.Remaining()
}

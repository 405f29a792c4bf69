// Package display decides which message the cluster shows and speaks the
// multi-frame text protocol that puts it there.
package display

import (
	"time"

	"github.com/tomsel/datadash/obd"
	"github.com/tomsel/datadash/telemetry"
	"github.com/tomsel/datadash/timer"
)

// Intent tags which message won the rendering cycle.
type Intent int

const (
	IntentBanner Intent = iota
	IntentDrivingTemp
	IntentDrivingOil
	IntentDrivingBattery
	IntentDrivingTune
	IntentMaxBoost
	IntentCooldown
	IntentLowBattery
	IntentColdEngine
)

// Message is one rendering decision: the winning intent and its fixed
// width text.
type Message struct {
	Intent Intent
	Text   string
}

// idle conditions, round-robined while the car sits at idle or reverses
type idleCondition int

const (
	idleMaxBoost idleCondition = iota
	idleLowBattery
	idleColdEngine
	idleCooldown
	numIdleConditions
)

type SelectorConfig struct {
	Banner              string
	BannerGrace         time.Duration
	TogglePeriod        time.Duration
	IdleDebounce        time.Duration
	IdleRPM             int
	SafeOilTemp         int
	ColdEngineSafeRPM   int
	LowBatteryVolts     float32
	InterestingBoostPsi float32
}

// Selector is the priority state machine that turns fused telemetry into
// one display message per cycle.
type Selector struct {
	cfg SelectorConfig

	banner   *timer.Countdown
	toggle   *timer.Countdown
	debounce *timer.Countdown

	drivingIdx  int
	active      [numIdleConditions]bool
	cursor      int
	idleCurrent idleCondition
	idleShowing bool
}

func NewSelector(cfg SelectorConfig, clock timer.Clock) *Selector {
	s := &Selector{
		cfg:      cfg,
		banner:   timer.New(clock),
		toggle:   timer.New(clock),
		debounce: timer.New(clock),
		// so the first advance lands on the first condition
		cursor: int(numIdleConditions) - 1,
	}
	s.banner.Start(cfg.BannerGrace)
	s.toggle.Start(cfg.TogglePeriod)
	return s
}

// Select picks the message for one rendering cycle.
func (s *Selector) Select(snap telemetry.Snapshot, fus *telemetry.Fusion, cooling bool, coolRemaining time.Duration) Message {
	if !s.banner.Expired() {
		return Message{IntentBanner, pad24(s.cfg.Banner)}
	}

	toggled := false
	if s.toggle.Expired() {
		toggled = true
		s.toggle.Start(s.cfg.TogglePeriod)
	}

	msg := s.selectDriving(snap, fus, toggled)

	if snap.EngineRPM < s.cfg.IdleRPM || snap.Gear == -1 {
		// arm the debounce the instant idling begins so brief
		// low-rev moments while coasting don't flash idle messages
		if !s.debounce.Active() {
			s.debounce.Start(s.cfg.IdleDebounce)
		}
		if s.debounce.Expired() {
			if idle, ok := s.selectIdle(snap, fus, cooling, coolRemaining, toggled); ok {
				msg = idle
			}
		}
	} else {
		s.debounce.Stop()
		s.idleShowing = false
	}

	return msg
}

func (s *Selector) tuneEnabled(snap telemetry.Snapshot) bool {
	// the tune is only active in dynamic mode with warm oil
	return snap.DriveMode == obd.DriveModeDynamic && snap.EngineOilTemp >= s.cfg.SafeOilTemp
}

func (s *Selector) coldEngineHighRPM(snap telemetry.Snapshot) bool {
	return snap.EngineOilTemp < s.cfg.SafeOilTemp && snap.EngineRPM > s.cfg.ColdEngineSafeRPM
}

func (s *Selector) selectDriving(snap telemetry.Snapshot, fus *telemetry.Fusion, toggled bool) Message {
	if s.coldEngineHighRPM(snap) {
		return Message{IntentColdEngine, formatColdEngine()}
	}

	variants := []Intent{IntentDrivingTemp, IntentDrivingOil, IntentDrivingBattery}
	if s.tuneEnabled(snap) {
		variants = append(variants, IntentDrivingTune)
	}
	if toggled {
		s.drivingIdx++
	}
	intent := variants[s.drivingIdx%len(variants)]
	return Message{intent, formatDriving(intent, snap, fus)}
}

func (s *Selector) selectIdle(snap telemetry.Snapshot, fus *telemetry.Fusion, cooling bool, coolRemaining time.Duration, toggled bool) (Message, bool) {
	if fus.Extremes.MaxBoostPsi > s.cfg.InterestingBoostPsi {
		s.active[idleMaxBoost] = true
	}
	if snap.Battery > 0 && snap.Battery < s.cfg.LowBatteryVolts {
		s.active[idleLowBattery] = true
	}
	if snap.EngineOilTemp < s.cfg.SafeOilTemp && fus.Extremes.MaxColdRPM > s.cfg.ColdEngineSafeRPM {
		s.active[idleColdEngine] = true
	}
	if cooling {
		s.active[idleCooldown] = true
	}

	if toggled || !s.idleShowing {
		if next, ok := s.nextActive(); ok {
			s.cursor = int(next)
			s.idleCurrent = next
			s.idleShowing = true
		} else {
			s.idleShowing = false
		}
		// conditions must re-assert before the next toggle
		s.active = [numIdleConditions]bool{}
	}

	if !s.idleShowing {
		return Message{}, false
	}
	return s.idleMessage(snap, fus, coolRemaining), true
}

// nextActive advances from the remembered cursor so repeated cycles
// rotate through the active conditions instead of restarting.
func (s *Selector) nextActive() (idleCondition, bool) {
	for i := 1; i <= int(numIdleConditions); i++ {
		c := idleCondition((s.cursor + i) % int(numIdleConditions))
		if s.active[c] {
			return c, true
		}
	}
	return 0, false
}

func (s *Selector) idleMessage(snap telemetry.Snapshot, fus *telemetry.Fusion, coolRemaining time.Duration) Message {
	switch s.idleCurrent {
	case idleMaxBoost:
		return Message{IntentMaxBoost, formatMaxBoost(fus.Extremes)}
	case idleLowBattery:
		return Message{IntentLowBattery, formatLowBattery(snap.Battery)}
	case idleColdEngine:
		return Message{IntentColdEngine, formatColdEngine()}
	default:
		return Message{IntentCooldown, formatCooldown(coolRemaining)}
	}
}

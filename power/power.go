// Package power decides whether the vehicle is on. Probing is two-phase:
// a cheap listen-only traffic check first, then an active ignition
// request only if traffic was seen, so long off periods cost almost
// nothing in battery.
package power

import (
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/tomsel/datadash/canbus"
	"github.com/tomsel/datadash/obd"
	"github.com/tomsel/datadash/telemetry"
	"github.com/tomsel/datadash/timer"
)

type State int

const (
	ProbingForSignal State = iota
	VerifyingIgnition
	Running
	Sleeping
)

func (s State) String() string {
	switch s {
	case ProbingForSignal:
		return "probing"
	case VerifyingIgnition:
		return "verifying"
	case Running:
		return "running"
	default:
		return "sleeping"
	}
}

// Sleeper is the platform collaborator that powers the host down.
// WarmBoot reports whether this process start follows a deep sleep,
// which only ever happens after a clean shutdown.
type Sleeper interface {
	DeepSleep(wake time.Duration)
	WarmBoot() bool
}

type Config struct {
	// ProbeWindow bounds both the listen-only traffic check and each
	// ignition verification.
	ProbeWindow time.Duration
	ProbePoll   time.Duration
	VerifyPoll  time.Duration
	WakeAfter   time.Duration

	// AliveID is a broadcast identifier that only appears when the
	// vehicle is definitely on.
	AliveID uint32
}

// Machine runs the wake-up decision against the high speed bus.
type Machine struct {
	cfg      Config
	bus      canbus.Bus
	ignition obd.Signal
	clock    timer.Clock
	sleep    func(time.Duration)
}

func NewMachine(cfg Config, bus canbus.Bus, ignition obd.Signal, clock timer.Clock, sleep func(time.Duration)) *Machine {
	if clock == nil {
		clock = time.Now
	}
	if sleep == nil {
		sleep = time.Sleep
	}
	return &Machine{cfg: cfg, bus: bus, ignition: ignition, clock: clock, sleep: sleep}
}

// AwaitVehicleOn runs the probe sequence once and lands on either
// Running or Sleeping. One probe budget bounds both phases, so a wake
// cycle never stays up longer than the window no matter how late the
// traffic arrived. Anything ambiguous resolves to Sleeping.
func (m *Machine) AwaitVehicleOn() State {
	window := timer.New(m.clock)
	window.Start(m.cfg.ProbeWindow)
	if !m.probeForTraffic(window) {
		log.Info("no bus traffic, vehicle is off")
		return Sleeping
	}
	pos := m.verifyIgnition(window)
	if pos == obd.IgnitionOff {
		log.Info("bus traffic but ignition off")
		return Sleeping
	}
	log.WithField("ignition", pos).Info("vehicle is on")
	return Running
}

// probeForTraffic listens for a vehicle-on broadcast without putting any
// frames on the bus, for as long as the window allows.
func (m *Machine) probeForTraffic(window *timer.Countdown) bool {
	if err := m.bus.SetListenOnly(); err != nil {
		log.WithField("err", err).Error("unable to enter listen-only mode")
	}
	for !window.Expired() {
		for {
			f, ok := m.bus.TryReceiveFrame()
			if !ok {
				break
			}
			if f.ID == m.cfg.AliveID && f.Length == 8 {
				return true
			}
		}
		m.sleep(m.cfg.ProbePoll)
	}
	return false
}

// VerifyIgnition runs an ignition check with a fresh budget. Used for
// the re-checks while Running; the wake-up probe instead spends whatever
// its window has left.
func (m *Machine) VerifyIgnition() obd.IgnitionPosition {
	window := timer.New(m.clock)
	window.Start(m.cfg.ProbeWindow)
	return m.verifyIgnition(window)
}

// verifyIgnition asks the body computer for the key position and polls
// for the answer until the window runs out. No answer reads as off.
func (m *Machine) verifyIgnition(window *timer.Countdown) obd.IgnitionPosition {
	if err := m.bus.SetNormal(); err != nil {
		log.WithField("err", err).Error("unable to enter normal mode")
	}
	req := obd.Request(m.ignition.Module, m.ignition.Service, m.ignition.PID)
	if err := m.bus.SendFrame(req); err != nil {
		log.WithField("err", errors.Wrap(err, "ignition request")).Error("unable to query ignition")
		return obd.IgnitionOff
	}

	for !window.Expired() {
		for {
			f, ok := m.bus.TryReceiveFrame()
			if !ok {
				break
			}
			if !obd.IsModuleResponse(f.ID) || obd.PID(f) != m.ignition.PID {
				continue
			}
			var r obd.Readings
			m.ignition.Decode(f.Data, &r)
			return r.Ignition
		}
		m.sleep(m.cfg.VerifyPoll)
	}
	return obd.IgnitionOff
}

// StillOn re-checks the vehicle while Running. A passively acquired key
// position other than off is trusted as-is; off triggers an active
// verification so a stale snapshot can't shut the system down.
func (m *Machine) StillOn(latest obd.IgnitionPosition) bool {
	if latest != obd.IgnitionOff {
		return true
	}
	return m.VerifyIgnition() != obd.IgnitionOff
}

// Shutdown is the ordered teardown into deep sleep.
type Shutdown struct {
	Store       *telemetry.Store
	StopDisplay func()
	LowSpeed    canbus.Bus
	Sleeper     Sleeper
	WakeAfter   time.Duration
}

// Sleep marks the vehicle stopped, joins the display context, drops the
// display controller into low power and hands off to the sleeper. The
// display is torn down before the bus so no partial text sequence
// survives the power transition.
func (s *Shutdown) Sleep() {
	log.Info("going to sleep")
	s.Store.ForceStopped()
	if s.StopDisplay != nil {
		s.StopDisplay()
	}
	if err := s.LowSpeed.EnterLowPower(); err != nil {
		log.WithField("err", err).Error("unable to enter low-power mode")
	}
	s.Sleeper.DeepSleep(s.WakeAfter)
}

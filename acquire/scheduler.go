// Package acquire runs the acquisition side: periodic signal requests,
// inbound frame routing, and publishing the shared snapshot.
package acquire

import (
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tomsel/datadash/canbus"
	"github.com/tomsel/datadash/obd"
	"github.com/tomsel/datadash/timer"
)

var requestIntervals = map[obd.Rate]time.Duration{
	obd.RateHigh:   200 * time.Millisecond,
	obd.RateMedium: time.Second,
	obd.RateLow:    10 * time.Second,
}

// Scheduler owns the three repeating request timers. Each rate class
// re-requests its signals when its timer runs out; there is no retry for
// missing responses, a stale value simply persists.
type Scheduler struct {
	bus    canbus.Bus
	byRate map[obd.Rate][]obd.Signal
	timers map[obd.Rate]*timer.Countdown
}

func NewScheduler(bus canbus.Bus, table []obd.Signal, clock timer.Clock) *Scheduler {
	s := &Scheduler{
		bus:    bus,
		byRate: make(map[obd.Rate][]obd.Signal),
		timers: make(map[obd.Rate]*timer.Countdown),
	}
	for _, sig := range table {
		s.byRate[sig.Rate] = append(s.byRate[sig.Rate], sig)
	}
	for rate, interval := range requestIntervals {
		t := timer.New(clock)
		t.Start(interval)
		s.timers[rate] = t
	}
	return s
}

// Prime requests the slower signals once so they are not blank until
// their timers first expire.
func (s *Scheduler) Prime() {
	s.request(obd.RateMedium)
	s.request(obd.RateLow)
}

// Tick restarts every expired timer and sends the requests it owns.
func (s *Scheduler) Tick() {
	for rate, t := range s.timers {
		if t.Expired() {
			t.Start(requestIntervals[rate])
			s.request(rate)
		}
	}
}

func (s *Scheduler) request(rate obd.Rate) {
	for _, sig := range s.byRate[rate] {
		f := obd.Request(sig.Module, sig.Service, sig.PID)
		if err := s.bus.SendFrame(f); err != nil {
			log.WithField("err", err).WithField("signal", sig.Name).Error("unable to send request")
		}
	}
}

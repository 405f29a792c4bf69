package acquire

import (
	"github.com/tomsel/datadash/canbus"
	"github.com/tomsel/datadash/obd"
	"github.com/tomsel/datadash/telemetry"
	"github.com/tomsel/datadash/timer"
)

// Acquirer ties the scheduler and router together and publishes a fresh
// snapshot after every drain. The caller owns the loop so it can
// interleave its own checks between passes.
type Acquirer struct {
	bus    canbus.Bus
	sched  *Scheduler
	router *Router
	store  *telemetry.Store
}

func New(bus canbus.Bus, table []obd.Signal, broadcast BroadcastIDs, store *telemetry.Store, clock timer.Clock) *Acquirer {
	return &Acquirer{
		bus:    bus,
		sched:  NewScheduler(bus, table, clock),
		router: NewRouter(table, broadcast),
		store:  store,
	}
}

// Prime requests the slow signals once at startup.
func (a *Acquirer) Prime() {
	a.sched.Prime()
}

// Cycle performs one acquisition pass: send due requests, drain the
// inbound queue, publish the snapshot.
func (a *Acquirer) Cycle() {
	a.sched.Tick()
	a.router.Drain(a.bus)
	a.store.Publish(telemetry.FromReadings(a.router.Readings()))
}

// Ignition returns the most recently decoded ignition position.
func (a *Acquirer) Ignition() obd.IgnitionPosition {
	return a.router.Readings().Ignition
}

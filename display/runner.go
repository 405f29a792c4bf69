package display

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tomsel/datadash/telemetry"
	"github.com/tomsel/datadash/thermal"
)

// Runner is the display context: copy the shared snapshot, derive, pick
// a message, transmit it.
type Runner struct {
	store     *telemetry.Store
	fusion    *telemetry.Fusion
	estimator *thermal.Estimator
	selector  *Selector
	protocol  *Protocol
	offWait   time.Duration
	sleep     func(time.Duration)
}

func NewRunner(store *telemetry.Store, fusion *telemetry.Fusion, estimator *thermal.Estimator,
	selector *Selector, protocol *Protocol, offWait time.Duration) *Runner {
	return &Runner{
		store:     store,
		fusion:    fusion,
		estimator: estimator,
		selector:  selector,
		protocol:  protocol,
		offWait:   offWait,
		sleep:     time.Sleep,
	}
}

// Run loops until the context is cancelled.
func (r *Runner) Run(ctx context.Context) {
	log.Info("display context started")
	for ctx.Err() == nil {
		r.Cycle()
	}
	log.Info("display context stopped")
}

// Cycle performs one rendering pass.
func (r *Runner) Cycle() {
	snap := r.store.Load()
	if !snap.Running {
		// sending frames while the car is off keeps it in an active
		// state and drains the battery
		r.sleep(r.offWait)
		return
	}

	r.fusion.Update(snap)
	r.estimator.Observe(snap, r.fusion.BoostPsi)
	msg := r.selector.Select(snap, r.fusion, r.estimator.CoolingDown(), r.estimator.Remaining())
	if err := r.protocol.Show(msg.Text); err != nil {
		log.WithField("err", err).Error("unable to update dashboard text")
	}
}

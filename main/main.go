package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tomsel/datadash/acquire"
	"github.com/tomsel/datadash/canbus"
	"github.com/tomsel/datadash/config"
	"github.com/tomsel/datadash/display"
	"github.com/tomsel/datadash/obd"
	"github.com/tomsel/datadash/power"
	"github.com/tomsel/datadash/telemetry"
	"github.com/tomsel/datadash/thermal"
)

// pause between acquisition passes so an idle bus isn't spun on
const acquirePause = 20 * time.Millisecond

// hostSleeper is the fallback deep-sleep collaborator for hosts without
// a power controller: it exits and lets a supervisor restart the
// process after the wake timer. A marker file carries the warm-boot
// flag across the restart.
type hostSleeper struct {
	warm bool
}

func warmBootMarker() string {
	return filepath.Join(os.TempDir(), "datadash.warmboot")
}

func newHostSleeper() *hostSleeper {
	s := &hostSleeper{}
	if _, err := os.Stat(warmBootMarker()); err == nil {
		s.warm = true
		os.Remove(warmBootMarker())
	}
	return s
}

func (s *hostSleeper) DeepSleep(wake time.Duration) {
	if f, err := os.Create(warmBootMarker()); err == nil {
		f.Close()
	}
	log.WithField("wake", wake).Info("deep sleep")
	os.Exit(0)
}

func (s *hostSleeper) WarmBoot() bool {
	return s.warm
}

func openBuses(cfg config.Profile, sim bool) (canbus.Bus, canbus.Bus) {
	if sim {
		log.Info("test mode, simulating the vehicle")
		return canbus.NewSimBus(nil), canbus.NewSimBus(nil)
	}
	high := canbus.OpenRetry(cfg.Bus.HighSpeed, func() (canbus.Bus, error) {
		return canbus.Open(cfg.Bus.HighSpeed, nil)
	})
	low := canbus.OpenRetry(cfg.Bus.LowSpeed, func() (canbus.Bus, error) {
		return canbus.Open(cfg.Bus.LowSpeed, nil)
	})
	return high, low
}

func main() {
	profilePath := flag.String("profile", "", "vehicle profile file")
	sim := flag.Bool("sim", false, "simulate the vehicle instead of opening CAN interfaces")
	debug := flag.Bool("debug", false, "debug logging")
	flag.Parse()

	log.SetLevel(log.InfoLevel)
	if *debug {
		log.SetLevel(log.DebugLevel)
	}

	cfg := config.LoadOrDefault(*profilePath)
	sleeper := newHostSleeper()
	if sleeper.WarmBoot() {
		log.Info("warm boot after deep sleep")
	}

	high, low := openBuses(cfg, *sim)

	table := obd.DefaultSignals()
	ignition := obd.Find(table, obd.SignalIgnition)
	if ignition == nil {
		log.Fatal("signal table has no ignition entry")
	}

	store := telemetry.NewStore()
	machine := power.NewMachine(cfg.PowerConfig(), high, *ignition, nil, nil)
	shutdown := &power.Shutdown{
		Store:     store,
		LowSpeed:  low,
		Sleeper:   sleeper,
		WakeAfter: cfg.PowerConfig().WakeAfter,
	}

	if machine.AwaitVehicleOn() != power.Running {
		shutdown.Sleep()
		return
	}

	fusion := telemetry.NewFusion(cfg.FusionThresholds())
	estimator := thermal.New(cfg.ThermalConfig(), nil)
	selector := display.NewSelector(cfg.SelectorConfig(), nil)
	protocol := display.NewProtocol(cfg.ProtocolConfig(), low, nil, nil)
	runner := display.NewRunner(store, fusion, estimator, selector, protocol,
		time.Duration(cfg.Display.OffWaitMs)*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		runner.Run(ctx)
	}()
	shutdown.StopDisplay = func() {
		cancel()
		wg.Wait()
	}

	acq := acquire.New(high, table, cfg.BroadcastIDs(), store, nil)
	acq.Prime()
	for {
		acq.Cycle()
		if !machine.StillOn(acq.Ignition()) {
			break
		}
		time.Sleep(acquirePause)
	}
	shutdown.Sleep()
}

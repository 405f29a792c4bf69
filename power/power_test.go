package power

import (
	"testing"
	"time"

	"github.com/brutella/can"
	"github.com/stretchr/testify/assert"
	"github.com/tomsel/datadash/obd"
	"github.com/tomsel/datadash/telemetry"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

type powerBus struct {
	rx         []can.Frame
	sent       []can.Frame
	listenOnly int
	normal     int
	lowPower   int
	onSend     func(f can.Frame)
}

func (b *powerBus) SendFrame(f can.Frame) error {
	b.sent = append(b.sent, f)
	if b.onSend != nil {
		b.onSend(f)
	}
	return nil
}

func (b *powerBus) TryReceiveFrame() (can.Frame, bool) {
	if len(b.rx) == 0 {
		return can.Frame{}, false
	}
	f := b.rx[0]
	b.rx = b.rx[1:]
	return f, true
}

func (b *powerBus) SetListenOnly() error { b.listenOnly++; return nil }
func (b *powerBus) SetNormal() error     { b.normal++; return nil }
func (b *powerBus) EnterLowPower() error { b.lowPower++; return nil }
func (b *powerBus) Close() error         { return nil }

func powerConfig() Config {
	return Config{
		ProbeWindow: 5 * time.Second,
		ProbePoll:   time.Second,
		VerifyPoll:  500 * time.Millisecond,
		WakeAfter:   12 * time.Second,
		AliveID:     0x384,
	}
}

func ignitionSignal(t *testing.T) obd.Signal {
	sig := obd.Find(obd.DefaultSignals(), obd.SignalIgnition)
	assert.NotNil(t, sig)
	return *sig
}

func newTestMachine(t *testing.T, bus *powerBus) *Machine {
	clk := &fakeClock{}
	return NewMachine(powerConfig(), bus, ignitionSignal(t), clk.Now, func(d time.Duration) {
		clk.now = clk.now.Add(d)
	})
}

func ignitionResponse(position obd.IgnitionPosition) can.Frame {
	return can.Frame{
		ID:     0x18DAF140,
		Length: 8,
		Data:   [8]uint8{0x04, 0x62, 0x01, 0x31, uint8(position), 0xAA, 0xAA, 0xAA},
	}
}

func TestNoTrafficSleeps(t *testing.T) {
	bus := &powerBus{}
	m := newTestMachine(t, bus)

	assert.Equal(t, Sleeping, m.AwaitVehicleOn())
	assert.Equal(t, 1, bus.listenOnly)
	// a silent probe puts nothing on the bus
	assert.Empty(t, bus.sent)
}

func TestTrafficButIgnitionOffSleeps(t *testing.T) {
	bus := &powerBus{}
	bus.rx = []can.Frame{{ID: 0x384, Length: 8}}
	bus.onSend = func(f can.Frame) {
		bus.rx = append(bus.rx, ignitionResponse(obd.IgnitionOff))
	}
	m := newTestMachine(t, bus)

	assert.Equal(t, Sleeping, m.AwaitVehicleOn())
	assert.Equal(t, 1, bus.normal)
}

// lateTrafficBus stays silent until the alive broadcast shows up near
// the end of the probe window.
type lateTrafficBus struct {
	powerBus
	clk     *fakeClock
	aliveAt time.Time
	given   bool
}

func (b *lateTrafficBus) TryReceiveFrame() (can.Frame, bool) {
	if !b.given && !b.clk.now.Before(b.aliveAt) {
		b.given = true
		return can.Frame{ID: 0x384, Length: 8}, true
	}
	return b.powerBus.TryReceiveFrame()
}

func TestProbeBudgetSharedAcrossPhases(t *testing.T) {
	clk := &fakeClock{}
	bus := &lateTrafficBus{clk: clk, aliveAt: clk.now.Add(4500 * time.Millisecond)}
	m := NewMachine(powerConfig(), bus, ignitionSignal(t), clk.Now, func(d time.Duration) {
		clk.now = clk.now.Add(d)
	})

	start := clk.now
	assert.Equal(t, Sleeping, m.AwaitVehicleOn())

	// traffic was seen late, so ignition verification only gets what is
	// left of the one probe window, not a fresh one
	elapsed := clk.now.Sub(start)
	assert.True(t, elapsed <= 5500*time.Millisecond, "stayed awake %v", elapsed)
	assert.Len(t, bus.sent, 1)
}

func TestTrafficButNoIgnitionResponseSleeps(t *testing.T) {
	bus := &powerBus{}
	bus.rx = []can.Frame{{ID: 0x384, Length: 8}}
	m := newTestMachine(t, bus)

	assert.Equal(t, Sleeping, m.AwaitVehicleOn())
	assert.Len(t, bus.sent, 1)
}

func TestTrafficAndIgnitionOnRuns(t *testing.T) {
	bus := &powerBus{}
	bus.rx = []can.Frame{
		{ID: 0x2EF, Length: 8}, // unrelated traffic is not proof of life
		{ID: 0x384, Length: 4}, // wrong length either
		{ID: 0x384, Length: 8},
	}
	bus.onSend = func(f can.Frame) {
		bus.rx = append(bus.rx, ignitionResponse(obd.IgnitionOn))
	}
	m := newTestMachine(t, bus)

	assert.Equal(t, Running, m.AwaitVehicleOn())

	// the verification request went to the body computer
	assert.Len(t, bus.sent, 1)
	assert.Equal(t, uint32(obd.ModuleBCM), bus.sent[0].ID)
	assert.Equal(t, uint16(0x0131), obd.PID(bus.sent[0]))
}

func TestVerifyIgnitionSkipsForeignFrames(t *testing.T) {
	bus := &powerBus{}
	bus.onSend = func(f can.Frame) {
		bus.rx = append(bus.rx,
			can.Frame{ID: 0x2EF, Length: 8},
			ignitionResponse(obd.IgnitionStart))
	}
	m := newTestMachine(t, bus)

	assert.Equal(t, obd.IgnitionStart, m.VerifyIgnition())
}

func TestStillOnTrustsPassiveReading(t *testing.T) {
	bus := &powerBus{}
	m := newTestMachine(t, bus)

	assert.True(t, m.StillOn(obd.IgnitionOn))
	assert.True(t, m.StillOn(obd.IgnitionStart))
	assert.Empty(t, bus.sent)
}

func TestStillOnReverifiesWhenOff(t *testing.T) {
	bus := &powerBus{}
	bus.onSend = func(f can.Frame) {
		bus.rx = append(bus.rx, ignitionResponse(obd.IgnitionOn))
	}
	m := newTestMachine(t, bus)

	// the snapshot can read off while the value is merely stale
	assert.True(t, m.StillOn(obd.IgnitionOff))
	assert.Len(t, bus.sent, 1)
}

func TestStillOnConfirmedOff(t *testing.T) {
	bus := &powerBus{}
	m := newTestMachine(t, bus)

	assert.False(t, m.StillOn(obd.IgnitionOff))
}

type recordingSleeper struct {
	order *[]string
	wake  time.Duration
}

func (s *recordingSleeper) DeepSleep(wake time.Duration) {
	s.wake = wake
	*s.order = append(*s.order, "deepsleep")
}

func (s *recordingSleeper) WarmBoot() bool { return false }

func TestShutdownSequence(t *testing.T) {
	order := []string{}
	store := telemetry.NewStore()
	snap := telemetry.Snapshot{Running: true}
	snap.EngineRPM = 2000
	store.Publish(snap)

	bus := &powerBus{}
	sleeper := &recordingSleeper{order: &order}
	sd := &Shutdown{
		Store: store,
		StopDisplay: func() {
			assert.False(t, store.Load().Running)
			order = append(order, "stopdisplay")
		},
		LowSpeed:  bus,
		Sleeper:   sleeper,
		WakeAfter: 12 * time.Second,
	}

	sd.Sleep()

	assert.Equal(t, []string{"stopdisplay", "deepsleep"}, order)
	assert.Equal(t, 1, bus.lowPower)
	assert.Equal(t, 12*time.Second, sleeper.wake)
	// telemetry survives the stop but the running flag does not
	assert.False(t, store.Load().Running)
	assert.Equal(t, 2000, store.Load().EngineRPM)
}

package canbus

import (
	"time"

	"github.com/brutella/can"
	"github.com/tomsel/datadash/obd"
)

// SimBus fabricates vehicle traffic so the device can be exercised on a
// bench without a car. Diagnostic requests are answered immediately and
// the periodic broadcast frames carry a slowly sweeping engine state.
type SimBus struct {
	clock   func() time.Time
	rx      []can.Frame
	last    time.Time
	rpm     int
	rpmDown bool

	DriveModeID uint32
	GearInfoID  uint32
	EngineRPMID uint32

	listenOnly bool
	lowPower   bool
}

const simBroadcastInterval = 50 * time.Millisecond

func NewSimBus(clock func() time.Time) *SimBus {
	if clock == nil {
		clock = time.Now
	}
	return &SimBus{
		clock:       clock,
		rpm:         800,
		DriveModeID: 0x384,
		GearInfoID:  0x2EF,
		EngineRPMID: 0x0FC,
	}
}

// SendFrame answers diagnostic requests with plausible canned values.
func (b *SimBus) SendFrame(f can.Frame) error {
	if b.listenOnly {
		return nil
	}
	switch obd.Module(f.ID) {
	case obd.ModuleAll, obd.ModuleECM, obd.ModuleBCM, obd.ModuleTCM:
	default:
		// only requests addressed to modules get a response
		return nil
	}
	pid := obd.PID(f)
	service := uint8(f.Data[1]) + 0x40

	resp := can.Frame{ID: 0x18DAF110, Length: 8}
	resp.Data[0] = f.Data[0] + 2
	resp.Data[1] = service
	resp.Data[2] = f.Data[2]
	resp.Data[3] = f.Data[3]

	switch pid {
	case 0x195A: // absolute boost, tracks the rpm sweep
		mbar := 1013 + (b.rpm-800)/2
		resp.Data[4] = uint8(mbar >> 8)
		resp.Data[5] = uint8(mbar)
	case 0x0131: // ignition
		resp.Data[4] = uint8(obd.IgnitionOn)
	case 0x18BA: // exhaust gas temp, 600C
		resp.Data[4] = (600 + 50) / 5
	case 0x1003: // engine temp, 92C
		resp.Data[4] = 92 + 40
	case 0x1302: // oil temp, 85C
		resp.Data[5] = 85
	case 0x1956: // atmospheric pressure
		resp.Data[4] = uint8(1013 >> 8)
		resp.Data[5] = uint8(1013 & 0xFF)
	case 0x1004: // battery, 12.6V
		resp.Data[5] = 126
	default:
		return nil
	}

	b.rx = append(b.rx, resp)
	return nil
}

func (b *SimBus) TryReceiveFrame() (can.Frame, bool) {
	b.broadcast()
	if len(b.rx) == 0 {
		return can.Frame{}, false
	}
	f := b.rx[0]
	b.rx = b.rx[1:]
	return f, true
}

// broadcast appends the unsolicited frames at their real-world cadence
// and sweeps the engine speed up and down like a test drive.
func (b *SimBus) broadcast() {
	now := b.clock()
	if now.Sub(b.last) < simBroadcastInterval {
		return
	}
	b.last = now

	if b.rpmDown {
		b.rpm -= 100
	} else {
		b.rpm += 100
	}
	if b.rpm >= 4500 {
		b.rpmDown = true
	} else if b.rpm <= 800 {
		b.rpmDown = false
	}

	gear := b.rpm/700 + 1
	if gear > 6 {
		gear = 6
	}

	raw := b.rpm * 4
	rpmFrame := can.Frame{ID: b.EngineRPMID, Length: 8}
	rpmFrame.Data[0] = uint8(raw >> 8)
	rpmFrame.Data[1] = uint8(raw) &^ 0x03

	gearFrame := can.Frame{ID: b.GearInfoID, Length: 8}
	gearFrame.Data[0] = uint8(gear) << 4

	modeFrame := can.Frame{ID: b.DriveModeID, Length: 8}
	modeFrame.Data[1] = uint8(obd.DriveModeDynamic)

	b.rx = append(b.rx, rpmFrame, gearFrame, modeFrame)
}

func (b *SimBus) SetListenOnly() error {
	b.listenOnly = true
	return nil
}

func (b *SimBus) SetNormal() error {
	b.listenOnly = false
	return nil
}

func (b *SimBus) EnterLowPower() error {
	b.lowPower = true
	return nil
}

func (b *SimBus) Close() error { return nil }

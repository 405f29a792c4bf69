// Package canbus abstracts the two CAN controllers behind the small
// surface the core drives: send, non-blocking receive, and power/mode
// control.
package canbus

import (
	"time"

	"github.com/brutella/can"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Bus is one CAN controller.
type Bus interface {
	SendFrame(can.Frame) error
	TryReceiveFrame() (can.Frame, bool)
	SetListenOnly() error
	SetNormal() error
	EnterLowPower() error
	Close() error
}

// ModeController switches the transceiver's electrical mode. The actual
// switching is platform specific; Noop serves platforms that expose none.
type ModeController interface {
	SetListenOnly() error
	SetNormal() error
	EnterLowPower() error
}

type NoopModeController struct{}

func (NoopModeController) SetListenOnly() error { return nil }
func (NoopModeController) SetNormal() error     { return nil }
func (NoopModeController) EnterLowPower() error { return nil }

// rawBus is the subset of the socketcan library we use, declared here so
// tests can inject a stub.
type rawBus interface {
	SubscribeFunc(can.HandlerFunc)
	ConnectAndPublish() error
	Disconnect() error
	Publish(can.Frame) error
}

// to allow testing
var newRawBus = func(ifname string) (rawBus, error) {
	return can.NewBusForInterfaceWithName(ifname)
}

// Plenty of non-diagnostic traffic arrives on the high speed bus and no
// hardware filter can be used because the broadcast frames are needed
// too, so the receive buffer has to be generous or frames get missed.
const rxBufferSize = 1024

// SocketBus adapts a SocketCAN interface to the Bus surface. Received
// frames are pumped into a buffered channel so TryReceiveFrame never
// blocks.
type SocketBus struct {
	name string
	bus  rawBus
	mode ModeController
	rx   chan can.Frame
}

// Open connects to a SocketCAN interface and starts the receive pump.
func Open(ifname string, mode ModeController) (*SocketBus, error) {
	raw, err := newRawBus(ifname)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open CAN interface %s", ifname)
	}
	if mode == nil {
		mode = NoopModeController{}
	}
	b := &SocketBus{
		name: ifname,
		bus:  raw,
		mode: mode,
		rx:   make(chan can.Frame, rxBufferSize),
	}
	b.bus.SubscribeFunc(b.handleFrame)
	go func() {
		if err := b.bus.ConnectAndPublish(); err != nil {
			log.WithField("err", err).Errorf("%s: receive loop ended", b.name)
		}
	}()
	return b, nil
}

func (b *SocketBus) handleFrame(f can.Frame) {
	select {
	case b.rx <- f:
	default:
		// drop on overflow rather than block the bus callback
	}
}

func (b *SocketBus) SendFrame(f can.Frame) error {
	return errors.Wrapf(b.bus.Publish(f), "%s: unable to send frame", b.name)
}

func (b *SocketBus) TryReceiveFrame() (can.Frame, bool) {
	select {
	case f := <-b.rx:
		return f, true
	default:
		return can.Frame{}, false
	}
}

func (b *SocketBus) SetListenOnly() error { return b.mode.SetListenOnly() }
func (b *SocketBus) SetNormal() error     { return b.mode.SetNormal() }
func (b *SocketBus) EnterLowPower() error { return b.mode.EnterLowPower() }

func (b *SocketBus) Close() error {
	return b.bus.Disconnect()
}

var retrySleep = time.Second

// OpenRetry keeps trying to open a bus until it succeeds. The device must
// not proceed without a working controller, so this blocks indefinitely.
func OpenRetry(name string, open func() (Bus, error)) Bus {
	for {
		b, err := open()
		if err == nil {
			log.Infof("%s: bus opened", name)
			return b
		}
		log.WithField("err", err).Errorf("%s: unable to open bus, retrying", name)
		time.Sleep(retrySleep)
	}
}

package display

import (
	"time"

	"github.com/brutella/can"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/tomsel/datadash/canbus"
	"github.com/tomsel/datadash/timer"
)

// The text goes out as 8 frames of 3 characters. Each character is a two
// byte code unit whose high byte is always zero for this character set,
// so one 8-byte frame fits 3 characters after the 2-byte header.
const (
	charsPerFrame = 3
	framesPerText = textLength / charsPerFrame
)

type ProtocolConfig struct {
	CANID    uint32
	InfoCode uint8 // which virtual source the cluster attributes the text to

	// FrameDelay paces the sequence so a full pass fits the refresh
	// budget; the restarted pass after a collision runs at half this.
	FrameDelay time.Duration

	// RecoverTimeout bounds how long to wait for a competing sequence
	// to finish before giving up and restarting anyway.
	RecoverTimeout time.Duration
}

// Protocol transmits one text per pass and defends the sequence against
// the vehicle's own infotainment broadcaster competing for the same
// display region. The display bus offers no arbitration primitive, so
// without the recovery dance the cluster flickers or freezes.
type Protocol struct {
	cfg   ProtocolConfig
	bus   canbus.Bus
	clock timer.Clock
	sleep func(time.Duration)
}

func NewProtocol(cfg ProtocolConfig, bus canbus.Bus, clock timer.Clock, sleep func(time.Duration)) *Protocol {
	if clock == nil {
		clock = time.Now
	}
	if sleep == nil {
		sleep = time.Sleep
	}
	return &Protocol{cfg: cfg, bus: bus, clock: clock, sleep: sleep}
}

// header layout: byte0 bits[7:3] = total-1, bits[2:0] = index high bits;
// byte1 bits[7:6] = index low bits, bits[5:0] = info code
func encodeTextFrame(id uint32, infoCode, total, index uint8, chars string) can.Frame {
	f := can.Frame{ID: id, Length: 8}
	last := total - 1
	f.Data[0] = (last<<3)&0xF8 | (index>>2)&0x07
	f.Data[1] = (index<<6)&0xC0 | infoCode&0x3F
	for i := 0; i < charsPerFrame && i < len(chars); i++ {
		f.Data[2+i*2+1] = chars[i]
	}
	return f
}

type textFrame struct {
	total uint8
	index uint8
	info  uint8
}

func decodeTextFrame(f can.Frame) textFrame {
	return textFrame{
		total: f.Data[0]>>3 + 1,
		index: (f.Data[0]&0x07)<<2 | f.Data[1]>>6,
		info:  f.Data[1] & 0x3F,
	}
}

// EncodeTextFrames splits a display string into its frame sequence.
func EncodeTextFrames(text string, id uint32, infoCode uint8) []can.Frame {
	text = pad24(text)
	frames := make([]can.Frame, framesPerText)
	for i := range frames {
		frames[i] = encodeTextFrame(id, infoCode, framesPerText, uint8(i),
			text[i*charsPerFrame:(i+1)*charsPerFrame])
	}
	return frames
}

// clearFrame blanks the text region. Not required before every update,
// but it keeps leftovers from a longer previous text off the display.
func clearFrame(id uint32) can.Frame {
	return can.Frame{ID: id, Length: 8, Data: [8]uint8{0x00, 0x11, 0x00, 0x20}}
}

// Show transmits one full pass of the text.
func (p *Protocol) Show(text string) error {
	frames := EncodeTextFrames(text, p.cfg.CANID, p.cfg.InfoCode)
	if err := p.bus.SendFrame(clearFrame(p.cfg.CANID)); err != nil {
		return errors.Wrap(err, "unable to clear dashboard text")
	}

	delay := p.cfg.FrameDelay
	for i := 0; i < len(frames); {
		if err := p.bus.SendFrame(frames[i]); err != nil {
			return errors.Wrap(err, "unable to send text frame")
		}
		i++

		comp, ok := p.pollCompetitor()
		if !ok {
			p.sleep(delay)
			continue
		}
		switch {
		case comp.index == 1:
			// reclaim the display before the competitor's remaining
			// frames land, then let its sequence finish
			if err := p.bus.SendFrame(frames[0]); err != nil {
				return errors.Wrap(err, "unable to resend first text frame")
			}
			p.awaitCompetitorLast(comp.total)
			i = 0
			delay = p.cfg.FrameDelay / 2
		case comp.index == comp.total-1:
			// competitor just finished: restart quickly to win the
			// race against its next transmission
			i = 0
			delay = p.cfg.FrameDelay / 2
		default:
			p.sleep(delay)
		}
	}
	return nil
}

// pollCompetitor drains inbound frames and returns the first that
// belongs to another text source.
func (p *Protocol) pollCompetitor() (textFrame, bool) {
	for {
		f, ok := p.bus.TryReceiveFrame()
		if !ok {
			return textFrame{}, false
		}
		if f.ID != p.cfg.CANID {
			continue
		}
		tf := decodeTextFrame(f)
		if tf.info == p.cfg.InfoCode {
			continue
		}
		log.WithField("index", tf.index).
			WithField("info", tf.info).
			Debug("competing display frame")
		return tf, true
	}
}

// awaitCompetitorLast polls until the competing sequence's final frame
// goes by or the recovery window runs out.
func (p *Protocol) awaitCompetitorLast(total uint8) {
	t := timer.New(p.clock)
	t.Start(p.cfg.RecoverTimeout)
	for !t.Expired() {
		if comp, ok := p.pollCompetitor(); ok && comp.index == total-1 {
			return
		}
		p.sleep(p.cfg.FrameDelay)
	}
	log.Debug("competing sequence did not finish within the recovery window")
}

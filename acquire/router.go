package acquire

import (
	"github.com/brutella/can"
	log "github.com/sirupsen/logrus"
	"github.com/tomsel/datadash/canbus"
	"github.com/tomsel/datadash/obd"
)

// BroadcastIDs are the unsolicited frames decoded without PID matching.
// GearInfo and Boost may share an identifier.
type BroadcastIDs struct {
	DriveMode    uint32
	GearInfo     uint32
	EngineRPM    uint32
	Boost        uint32
	BoostEnabled bool
}

// Router classifies every inbound frame as a request response, a known
// broadcast, or noise, and keeps the latest decoded readings.
type Router struct {
	table     []obd.Signal
	broadcast BroadcastIDs
	readings  obd.Readings
}

func NewRouter(table []obd.Signal, broadcast BroadcastIDs) *Router {
	return &Router{table: table, broadcast: broadcast}
}

// Route decodes a single frame. Frames matching neither a module
// response nor a broadcast identifier are ignored.
func (r *Router) Route(f can.Frame) {
	if obd.IsModuleResponse(f.ID) {
		pid := obd.PID(f)
		for i := range r.table {
			if pid == r.table[i].PID {
				r.table[i].Decode(f.Data, &r.readings)
				log.WithField("signal", r.table[i].Name).
					WithField("value", r.table[i].Format(r.readings)).
					Debug("decoded response")
				return
			}
		}
		return
	}

	if f.Length != 8 {
		return
	}
	if f.ID == r.broadcast.DriveMode {
		obd.DecodeDriveModeBroadcast(f.Data, &r.readings)
	}
	if f.ID == r.broadcast.GearInfo {
		obd.DecodeGearBroadcast(f.Data, &r.readings)
	}
	if f.ID == r.broadcast.EngineRPM {
		obd.DecodeEngineRPMBroadcast(f.Data, &r.readings)
	}
	if r.broadcast.BoostEnabled && f.ID == r.broadcast.Boost {
		obd.DecodeBoostPressureBroadcast(f.Data, &r.readings)
	}
}

// Drain empties the inbound queue without blocking and returns the
// number of frames seen.
func (r *Router) Drain(bus canbus.Bus) int {
	n := 0
	for {
		f, ok := bus.TryReceiveFrame()
		if !ok {
			return n
		}
		r.Route(f)
		n++
	}
}

// Readings returns a copy of the latest decoded values.
func (r *Router) Readings() obd.Readings {
	return r.readings
}

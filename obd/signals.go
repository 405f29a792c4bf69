package obd

import (
	"fmt"
)

// DriveMode is the raw value of the drive mode selector broadcast.
type DriveMode uint8

const (
	DriveModeNatural    DriveMode = 0x01
	DriveModeDynamic    DriveMode = 0x09
	DriveModeEfficiency DriveMode = 0x11
	DriveModeRace       DriveMode = 0x31
)

func (m DriveMode) String() string {
	switch m {
	case DriveModeNatural:
		return "natural"
	case DriveModeDynamic:
		return "dynamic"
	case DriveModeEfficiency:
		return "efficiency"
	case DriveModeRace:
		return "race"
	}
	return fmt.Sprintf("unknown(%#02x)", uint8(m))
}

// IgnitionPosition is the raw ignition key position reported by the BCM.
type IgnitionPosition uint8

const (
	IgnitionOff   IgnitionPosition = 0x00
	IgnitionOn    IgnitionPosition = 0x04 // electronics powered, engine not turning
	IgnitionStart IgnitionPosition = 0x14
)

// Readings holds the latest decoded value of every signal. Decoders only
// ever overwrite their own field; there is no queueing, a fresh value
// simply replaces the previous one.
type Readings struct {
	EngineRPM           int
	Gear                int // -1 = reverse, 0 = neutral
	EngineTemp          int // celsius
	EngineOilTemp       int // celsius
	ExhaustGasTemp      int // celsius
	AtmosphericPressure int // mbar
	BoostPressure       int // mbar, absolute
	Battery             float32
	BatteryIBS          int // percent
	ExternalTemp        int // celsius
	DriveMode           DriveMode
	Ignition            IgnitionPosition
}

// DecodeFunc maps a raw 8-byte payload onto one Readings field. Decoders
// are total: every byte pattern produces a value, out-of-range results
// are tolerated by guard conditions downstream.
type DecodeFunc func(data [8]uint8, r *Readings)

// gear codes on the request/response path
const gearReverse = 0x10

func DecodeEngineRPM(d [8]uint8, r *Readings) {
	r.EngineRPM = (int(d[4])*256 + int(d[5])) / 4
}

// DecodeEngineRPMBroadcast reads RPM from the unsolicited powertrain
// frame that arrives every ~50ms. The low 2 bits of the second byte are
// unrelated to engine speed.
func DecodeEngineRPMBroadcast(d [8]uint8, r *Readings) {
	r.EngineRPM = (int(d[0])*256 + int(d[1]&^0x03)) / 4
}

func DecodeGear(d [8]uint8, r *Readings) {
	g := int(d[4])
	if g == gearReverse {
		g = -1
	}
	r.Gear = g
}

// DecodeGearBroadcast reads the gear from the high nibble of byte 0:
// 0x0 = neutral, 0x1-0x6 = gears 1-6, 0x7 = reverse, 0x8-0xA = gears 7-9,
// 0xF = neutral while in park.
func DecodeGearBroadcast(d [8]uint8, r *Readings) {
	g := int(d[0] >> 4)
	switch {
	case g == 0x07:
		g = -1
	case g >= 0x08 && g <= 0x0A:
		g--
	case g == 0x0F:
		g = 0
	}
	r.Gear = g
}

func DecodeEngineTemp(d [8]uint8, r *Readings) {
	r.EngineTemp = int(d[4]) - 40
}

func DecodeEngineOilTemp(d [8]uint8, r *Readings) {
	r.EngineOilTemp = int(d[5])
}

func DecodeExhaustGasTemp(d [8]uint8, r *Readings) {
	r.ExhaustGasTemp = int(d[4])*5 - 50
}

func DecodeBattery(d [8]uint8, r *Readings) {
	r.Battery = float32(d[5]) / 10.0
}

func DecodeBatteryIBS(d [8]uint8, r *Readings) {
	r.BatteryIBS = int(d[4])
}

func DecodeAtmosphericPressure(d [8]uint8, r *Readings) {
	r.AtmosphericPressure = int(d[4])*256 + int(d[5])
}

func DecodeBoostPressure(d [8]uint8, r *Readings) {
	r.BoostPressure = int(d[4])*256 + int(d[5])
}

// DecodeBoostPressureBroadcast reads absolute boost from the unsolicited
// frame: byte 3 bits 5..0 and byte 4 bit 7. Coarser than the
// request/response path at high boost, so it is off by default.
func DecodeBoostPressureBroadcast(d [8]uint8, r *Readings) {
	r.BoostPressure = int(d[3]&0x3F)*32 + int(d[4]>>7)*16 + 1000
}

func DecodeExternalTemp(d [8]uint8, r *Readings) {
	r.ExternalTemp = int(d[4])/2 - 40
}

func DecodeDriveModeBroadcast(d [8]uint8, r *Readings) {
	r.DriveMode = DriveMode(d[1])
}

func DecodeIgnition(d [8]uint8, r *Readings) {
	r.Ignition = IgnitionPosition(d[4])
}

// Rate is the request class of an actively polled signal.
type Rate int

const (
	RateHigh   Rate = iota // ~200ms
	RateMedium             // ~1s
	RateLow                // ~10s
)

// Signal describes one actively polled value: where to ask for it, how
// often, and how to decode and present the answer. The table is static
// configuration, never mutated at runtime.
type Signal struct {
	Name    string
	Module  Module
	Service Service
	PID     uint16
	Rate    Rate
	Decode  DecodeFunc
	Format  func(r Readings) string
}

// Signal names used to look entries up in a table.
const (
	SignalBoostPressure = "Boost Pressure"
	SignalIgnition      = "Ignition Key Position"
	SignalExhaustGas    = "Exhaust Gas Temp"
	SignalEngineTemp    = "Engine Temp"
	SignalEngineOilTemp = "Engine Oil Temp"
	SignalAtmospheric   = "Atmospheric Pressure"
	SignalBattery       = "Battery"
)

// DefaultSignals is the Alfa Romeo Giulia PID table.
func DefaultSignals() []Signal {
	return []Signal{
		{SignalBoostPressure, ModuleECM, ServiceManufacturerSpecific, 0x195A, RateHigh, DecodeBoostPressure,
			func(r Readings) string { return fmt.Sprintf("%d mbar", r.BoostPressure) }},
		{SignalIgnition, ModuleBCM, ServiceManufacturerSpecific, 0x0131, RateMedium, DecodeIgnition,
			func(r Readings) string { return fmt.Sprintf("%#02x", uint8(r.Ignition)) }},
		{SignalExhaustGas, ModuleECM, ServiceManufacturerSpecific, 0x18BA, RateMedium, DecodeExhaustGasTemp,
			func(r Readings) string { return fmt.Sprintf("%d C", r.ExhaustGasTemp) }},
		{SignalEngineTemp, ModuleECM, ServiceManufacturerSpecific, 0x1003, RateLow, DecodeEngineTemp,
			func(r Readings) string { return fmt.Sprintf("%d C", r.EngineTemp) }},
		{SignalEngineOilTemp, ModuleECM, ServiceManufacturerSpecific, 0x1302, RateLow, DecodeEngineOilTemp,
			func(r Readings) string { return fmt.Sprintf("%d C", r.EngineOilTemp) }},
		{SignalAtmospheric, ModuleECM, ServiceManufacturerSpecific, 0x1956, RateLow, DecodeAtmosphericPressure,
			func(r Readings) string { return fmt.Sprintf("%d mbar", r.AtmosphericPressure) }},
		{SignalBattery, ModuleECM, ServiceManufacturerSpecific, 0x1004, RateLow, DecodeBattery,
			func(r Readings) string { return fmt.Sprintf("%.1f V", r.Battery) }},
	}
}

// Find returns the table entry with the given name, or nil.
func Find(table []Signal, name string) *Signal {
	for i := range table {
		if table[i].Name == name {
			return &table[i]
		}
	}
	return nil
}

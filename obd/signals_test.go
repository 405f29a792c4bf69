package obd

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func payload(bytes ...uint8) (d [8]uint8) {
	copy(d[:], bytes)
	return
}

func TestDecodeEngineRPM(t *testing.T) {
	var r Readings
	// (0x1A*256 + 0xF8) / 4 = 1726
	DecodeEngineRPM(payload(0, 0, 0, 0, 0x1A, 0xF8), &r)
	assert.Equal(t, 1726, r.EngineRPM)

	DecodeEngineRPM(payload(0, 0, 0, 0, 0, 0), &r)
	assert.Equal(t, 0, r.EngineRPM)
}

func TestDecodeEngineRPMBroadcast(t *testing.T) {
	var r Readings
	// the low 2 bits of byte 1 must be masked off
	DecodeEngineRPMBroadcast(payload(0x1A, 0xFB), &r)
	assert.Equal(t, (0x1A*256+0xF8)/4, r.EngineRPM)
}

func TestDecodeGear(t *testing.T) {
	var r Readings
	DecodeGear(payload(0, 0, 0, 0, 0x03), &r)
	assert.Equal(t, 3, r.Gear)

	DecodeGear(payload(0, 0, 0, 0, 0x10), &r)
	assert.Equal(t, -1, r.Gear)

	DecodeGear(payload(0, 0, 0, 0, 0x00), &r)
	assert.Equal(t, 0, r.Gear)
}

func TestDecodeGearBroadcast(t *testing.T) {
	cases := []struct {
		code uint8
		gear int
	}{
		{0x00, 0},  // neutral
		{0x01, 1},
		{0x06, 6},
		{0x07, -1}, // reverse
		{0x08, 7},
		{0x09, 8},
		{0x0A, 9},
		{0x0F, 0}, // neutral while in park
	}
	for _, c := range cases {
		t.Run(fmt.Sprintf("code_%#02x", c.code), func(t *testing.T) {
			var r Readings
			DecodeGearBroadcast(payload(c.code<<4), &r)
			assert.Equal(t, c.gear, r.Gear)
		})
	}
}

func TestDecodeTemperatures(t *testing.T) {
	var r Readings
	DecodeEngineTemp(payload(0, 0, 0, 0, 130), &r)
	assert.Equal(t, 90, r.EngineTemp)

	DecodeEngineOilTemp(payload(0, 0, 0, 0, 0, 85), &r)
	assert.Equal(t, 85, r.EngineOilTemp)

	DecodeExhaustGasTemp(payload(0, 0, 0, 0, 150), &r)
	assert.Equal(t, 700, r.ExhaustGasTemp)

	DecodeExternalTemp(payload(0, 0, 0, 0, 110), &r)
	assert.Equal(t, 15, r.ExternalTemp)
}

func TestDecodeBattery(t *testing.T) {
	var r Readings
	DecodeBattery(payload(0, 0, 0, 0, 0, 126), &r)
	assert.Equal(t, float32(12.6), r.Battery)

	DecodeBatteryIBS(payload(0, 0, 0, 0, 87), &r)
	assert.Equal(t, 87, r.BatteryIBS)
}

func TestDecodePressures(t *testing.T) {
	var r Readings
	DecodeAtmosphericPressure(payload(0, 0, 0, 0, 0x03, 0xF5), &r)
	assert.Equal(t, 1013, r.AtmosphericPressure)

	DecodeBoostPressure(payload(0, 0, 0, 0, 0x08, 0x52), &r)
	assert.Equal(t, 2130, r.BoostPressure)
}

func TestDecodeBoostPressureBroadcast(t *testing.T) {
	var r Readings
	// byte 3 bits 5..0 = 0x20, byte 4 bit 7 set
	DecodeBoostPressureBroadcast(payload(0, 0, 0, 0xE0, 0x80), &r)
	assert.Equal(t, 0x20*32+16+1000, r.BoostPressure)
}

func TestDecodeDriveModeBroadcast(t *testing.T) {
	var r Readings
	DecodeDriveModeBroadcast(payload(0, 0x09), &r)
	assert.Equal(t, DriveModeDynamic, r.DriveMode)
	DecodeDriveModeBroadcast(payload(0, 0x31), &r)
	assert.Equal(t, DriveModeRace, r.DriveMode)
}

func TestDecodeIgnition(t *testing.T) {
	var r Readings
	DecodeIgnition(payload(0, 0, 0, 0, 0x04), &r)
	assert.Equal(t, IgnitionOn, r.Ignition)
	DecodeIgnition(payload(0, 0, 0, 0, 0x14), &r)
	assert.Equal(t, IgnitionStart, r.Ignition)
	DecodeIgnition(payload(0, 0, 0, 0, 0x00), &r)
	assert.Equal(t, IgnitionOff, r.Ignition)
}

func TestDecodersAreTotal(t *testing.T) {
	// every decoder must accept any byte pattern without panicking
	decoders := []DecodeFunc{
		DecodeEngineRPM, DecodeEngineRPMBroadcast,
		DecodeGear, DecodeGearBroadcast,
		DecodeEngineTemp, DecodeEngineOilTemp, DecodeExhaustGasTemp,
		DecodeBattery, DecodeBatteryIBS,
		DecodeAtmosphericPressure, DecodeBoostPressure, DecodeBoostPressureBroadcast,
		DecodeExternalTemp, DecodeDriveModeBroadcast, DecodeIgnition,
	}
	patterns := [][8]uint8{
		{},
		{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF},
		{0x00, 0xFF, 0x00, 0xFF, 0x00, 0xFF, 0x00, 0xFF},
	}
	for _, decode := range decoders {
		for _, p := range patterns {
			var r Readings
			decode(p, &r)
			// same input, same output
			var r2 Readings
			decode(p, &r2)
			assert.Equal(t, r, r2)
		}
	}
}

func TestDefaultSignals(t *testing.T) {
	table := DefaultSignals()

	boost := Find(table, SignalBoostPressure)
	assert.NotNil(t, boost)
	assert.Equal(t, RateHigh, boost.Rate)
	assert.Equal(t, ModuleECM, boost.Module)

	ign := Find(table, SignalIgnition)
	assert.NotNil(t, ign)
	assert.Equal(t, RateMedium, ign.Rate)
	assert.Equal(t, ModuleBCM, ign.Module)

	assert.Nil(t, Find(table, "No Such Signal"))

	// every entry can decode and format without blowing up
	for _, sig := range table {
		var r Readings
		sig.Decode([8]uint8{0, 0x62, 0, 0, 0x10, 0x20}, &r)
		assert.NotEmpty(t, sig.Format(r))
	}
}

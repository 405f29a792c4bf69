package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultProfile(t *testing.T) {
	p := Default()

	assert.Equal(t, "can0", p.Bus.HighSpeed)
	assert.Equal(t, "can1", p.Bus.LowSpeed)
	assert.Equal(t, uint32(0x090), p.Display.CANID)
	assert.Len(t, p.Thermal.Tiers, 4)
	// tiers ordered most severe first
	for i := 1; i < len(p.Thermal.Tiers); i++ {
		assert.True(t, p.Thermal.Tiers[i].EngineRPM < p.Thermal.Tiers[i-1].EngineRPM)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "giulia.toml")
	profile := `
[bus]
highspeed = "vcan0"

[display]
banner = "Test Bench"
togglePeriodMs = 2000

[thresholds]
lowBatteryVolts = 11.8

[[thermal.tiers]]
engineRPM = 5000
exhaustGasTemp = 900
cooldownSec = 240
`
	assert.Nil(t, os.WriteFile(path, []byte(profile), 0644))

	p, err := Load(path)
	assert.Nil(t, err)

	assert.Equal(t, "vcan0", p.Bus.HighSpeed)
	assert.Equal(t, "can1", p.Bus.LowSpeed) // untouched default
	assert.Equal(t, "Test Bench", p.Display.Banner)
	assert.Equal(t, 2000, p.Display.TogglePeriodMs)
	assert.Equal(t, float32(11.8), p.Thresholds.LowBatteryVolts)
	// a tier table in the profile replaces the default table outright
	assert.Len(t, p.Thermal.Tiers, 1)
}

func TestLoadRejectsBrokenProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.toml")
	assert.Nil(t, os.WriteFile(path, []byte("[display\nbanner="), 0644))

	_, err := Load(path)
	assert.NotNil(t, err)
}

func TestLoadOrDefault(t *testing.T) {
	p := LoadOrDefault("")
	assert.Equal(t, Default(), p)

	p = LoadOrDefault("/does/not/exist.toml")
	assert.Equal(t, Default(), p)
}

func TestConversions(t *testing.T) {
	p := Default()

	sel := p.SelectorConfig()
	assert.Equal(t, 5*time.Second, sel.TogglePeriod)
	assert.Equal(t, 1000, sel.IdleRPM)

	proto := p.ProtocolConfig()
	assert.Equal(t, 25*time.Millisecond, proto.FrameDelay)

	th := p.ThermalConfig()
	assert.Equal(t, 5*time.Second, th.Window)
	assert.Equal(t, 180*time.Second, th.Tiers[0].Cooldown)
	assert.Equal(t, 60, th.ColdOilTemp)

	fth := p.FusionThresholds()
	assert.Equal(t, 70, fth.SafeOilTemp)

	pw := p.PowerConfig()
	assert.Equal(t, 5*time.Second, pw.ProbeWindow)
	assert.Equal(t, uint32(0x384), pw.AliveID)

	ids := p.BroadcastIDs()
	assert.Equal(t, uint32(0x2EF), ids.GearInfo)
	assert.False(t, ids.BoostEnabled)
}

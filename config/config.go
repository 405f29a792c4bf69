// Package config loads the per-vehicle profile. Everything that differs
// between cars lives here: bus names, broadcast identifiers, thresholds
// and the thermal tier table. Protocol logic never changes per vehicle.
package config

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/tomsel/datadash/acquire"
	"github.com/tomsel/datadash/display"
	"github.com/tomsel/datadash/power"
	"github.com/tomsel/datadash/telemetry"
	"github.com/tomsel/datadash/thermal"
)

type Bus struct {
	HighSpeed string
	LowSpeed  string
}

type Display struct {
	CANID            uint32
	InfoCode         uint8
	FrameDelayMs     int
	RecoverTimeoutMs int
	Banner           string
	BannerGraceMs    int
	TogglePeriodMs   int
	IdleDebounceMs   int
	OffWaitMs        int
}

type Broadcast struct {
	DriveMode    uint32
	GearInfo     uint32
	EngineRPM    uint32
	Boost        uint32
	BoostEnabled bool
}

type Thresholds struct {
	IdleRPM             int
	ColdEngineSafeRPM   int
	SafeOilTemp         int
	CooldownOilTemp     int
	LowBatteryVolts     float32
	SpiritedBoostPsi    float32
	InterestingBoostPsi float32
}

type Tier struct {
	EngineRPM      int
	ExhaustGasTemp int
	CooldownSec    int
}

type Thermal struct {
	WindowMs int
	Tiers    []Tier
}

type Power struct {
	ProbeWindowMs   int
	ProbePollMs     int
	VerifyPollMs    int
	DeepSleepWakeMs int
}

type Profile struct {
	Bus        Bus
	Display    Display
	Broadcast  Broadcast
	Thresholds Thresholds
	Thermal    Thermal
	Power      Power
}

// Default is the Alfa Romeo Giulia 2.0 profile.
func Default() Profile {
	return Profile{
		Bus: Bus{
			HighSpeed: "can0",
			LowSpeed:  "can1",
		},
		Display: Display{
			CANID:            0x090,
			InfoCode:         0x00,
			FrameDelayMs:     25,
			RecoverTimeoutMs: 500,
			Banner:           "DataDash+",
			BannerGraceMs:    3000,
			TogglePeriodMs:   5000,
			IdleDebounceMs:   2000,
			OffWaitMs:        1000,
		},
		Broadcast: Broadcast{
			DriveMode:    0x384,
			GearInfo:     0x2EF,
			EngineRPM:    0x0FC,
			Boost:        0x2EF,
			BoostEnabled: false,
		},
		Thresholds: Thresholds{
			IdleRPM:             1000,
			ColdEngineSafeRPM:   3000,
			SafeOilTemp:         70,
			CooldownOilTemp:     60,
			LowBatteryVolts:     12.4,
			SpiritedBoostPsi:    20,
			InterestingBoostPsi: 1,
		},
		Thermal: Thermal{
			WindowMs: 5000,
			Tiers: []Tier{
				{EngineRPM: 4000, ExhaustGasTemp: 816, CooldownSec: 180},
				{EngineRPM: 3500, ExhaustGasTemp: 703, CooldownSec: 60},
				{EngineRPM: 2600, ExhaustGasTemp: 649, CooldownSec: 30},
				{EngineRPM: 2100, ExhaustGasTemp: 538, CooldownSec: 0},
			},
		},
		Power: Power{
			ProbeWindowMs:   5000,
			ProbePollMs:     1000,
			VerifyPollMs:    500,
			DeepSleepWakeMs: 12000,
		},
	}
}

// Load reads a profile file over the defaults, so a profile only has to
// name what differs.
func Load(path string) (Profile, error) {
	p := Default()
	if _, err := toml.DecodeFile(path, &p); err != nil {
		return Profile{}, errors.Wrapf(err, "unable to load profile %s", path)
	}
	return p, nil
}

// LoadOrDefault falls back to the built-in profile when no file is
// given or present.
func LoadOrDefault(path string) Profile {
	if path == "" {
		return Default()
	}
	if _, err := os.Stat(path); err != nil {
		log.WithField("path", path).Info("no profile file, using defaults")
		return Default()
	}
	p, err := Load(path)
	if err != nil {
		log.WithField("err", err).Error("unable to parse profile, using defaults")
		return Default()
	}
	return p
}

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

func (p Profile) SelectorConfig() display.SelectorConfig {
	return display.SelectorConfig{
		Banner:              p.Display.Banner,
		BannerGrace:         ms(p.Display.BannerGraceMs),
		TogglePeriod:        ms(p.Display.TogglePeriodMs),
		IdleDebounce:        ms(p.Display.IdleDebounceMs),
		IdleRPM:             p.Thresholds.IdleRPM,
		SafeOilTemp:         p.Thresholds.SafeOilTemp,
		ColdEngineSafeRPM:   p.Thresholds.ColdEngineSafeRPM,
		LowBatteryVolts:     p.Thresholds.LowBatteryVolts,
		InterestingBoostPsi: p.Thresholds.InterestingBoostPsi,
	}
}

func (p Profile) ProtocolConfig() display.ProtocolConfig {
	return display.ProtocolConfig{
		CANID:          p.Display.CANID,
		InfoCode:       p.Display.InfoCode,
		FrameDelay:     ms(p.Display.FrameDelayMs),
		RecoverTimeout: ms(p.Display.RecoverTimeoutMs),
	}
}

func (p Profile) ThermalConfig() thermal.Config {
	tiers := make([]thermal.Tier, len(p.Thermal.Tiers))
	for i, t := range p.Thermal.Tiers {
		tiers[i] = thermal.Tier{
			EngineRPM:      t.EngineRPM,
			ExhaustGasTemp: t.ExhaustGasTemp,
			Cooldown:       time.Duration(t.CooldownSec) * time.Second,
		}
	}
	return thermal.Config{
		Tiers:            tiers,
		Window:           ms(p.Thermal.WindowMs),
		ColdOilTemp:      p.Thresholds.CooldownOilTemp,
		SpiritedBoostPsi: p.Thresholds.SpiritedBoostPsi,
	}
}

func (p Profile) PowerConfig() power.Config {
	return power.Config{
		ProbeWindow: ms(p.Power.ProbeWindowMs),
		ProbePoll:   ms(p.Power.ProbePollMs),
		VerifyPoll:  ms(p.Power.VerifyPollMs),
		WakeAfter:   ms(p.Power.DeepSleepWakeMs),
		AliveID:     p.Broadcast.DriveMode,
	}
}

func (p Profile) FusionThresholds() telemetry.Thresholds {
	return telemetry.Thresholds{
		SafeOilTemp: p.Thresholds.SafeOilTemp,
	}
}

func (p Profile) BroadcastIDs() acquire.BroadcastIDs {
	return acquire.BroadcastIDs{
		DriveMode:    p.Broadcast.DriveMode,
		GearInfo:     p.Broadcast.GearInfo,
		EngineRPM:    p.Broadcast.EngineRPM,
		Boost:        p.Broadcast.Boost,
		BoostEnabled: p.Broadcast.BoostEnabled,
	}
}

package display

import (
	"fmt"
	"strings"
	"time"

	"github.com/tomsel/datadash/telemetry"
)

// the cluster's text region is exactly 24 characters wide
const textLength = 24

// pad24 fits a string into the fixed text region.
func pad24(s string) string {
	if len(s) > textLength {
		return s[:textLength]
	}
	return s + strings.Repeat(" ", textLength-len(s))
}

func fahrenheit(celsius int) int {
	return int(float32(celsius)*9.0/5.0 + 32.0 + 0.5)
}

// gearText renders a gear as R, N or D1..D8.
func gearText(gear int) string {
	letter := "D"
	switch {
	case gear == -1:
		letter = "R"
	case gear == 0:
		letter = "N"
	}
	if gear >= 1 && gear <= 8 {
		return fmt.Sprintf("%s%d", letter, gear)
	}
	return letter + " "
}

func roundPsi(psi float32) int {
	return int(psi + 0.5)
}

func formatDriving(intent Intent, snap telemetry.Snapshot, fus *telemetry.Fusion) string {
	psi := roundPsi(fus.BoostPsi)
	gear := gearText(snap.Gear)
	switch intent {
	case IntentDrivingTemp:
		// " 23 psi   D1   Eng 200*F"
		return pad24(fmt.Sprintf(" %2d psi   %s   Eng %3d*F", psi, gear, fahrenheit(snap.EngineTemp)))
	case IntentDrivingBattery:
		// " 23 psi   D1   Bat 12.6V"
		return pad24(fmt.Sprintf(" %2d psi   %s   Bat %2.1fV", psi, gear, snap.Battery))
	case IntentDrivingTune:
		// " 23 psi   D1   Squadra  "
		return pad24(fmt.Sprintf(" %2d psi   %s   Squadra", psi, gear))
	default:
		// " 23 psi   D1   Oil 200*F"
		return pad24(fmt.Sprintf(" %2d psi   %s   Oil %3d*F", psi, gear, fahrenheit(snap.EngineOilTemp)))
	}
}

func formatMaxBoost(ext telemetry.Extremes) string {
	// "Max 23 psi @ 5555 rpm D2"
	return pad24(fmt.Sprintf("Max %2d psi @ %4d rpm %s",
		roundPsi(ext.MaxBoostPsi), ext.MaxBoostRPM, gearText(ext.MaxBoostGear)))
}

func formatCooldown(remaining time.Duration) string {
	// "  Turbo cooldown  180s  "
	return pad24(fmt.Sprintf("  Turbo cooldown  %3ds", int(remaining/time.Second)))
}

func formatLowBattery(volts float32) string {
	// " Battery is low!  12.2V "
	return pad24(fmt.Sprintf(" Battery is low!  %2.1fV", volts))
}

func formatColdEngine() string {
	return pad24(" Careful, engine is cold")
}

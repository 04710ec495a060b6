package types

import "strings"

// OperationalMode is the high-level control strategy accepted by the
// Configuration API.
type OperationalMode string

const (
	OperationalModeAutonomous OperationalMode = "autonomous"
)

// EnergyExports governs what energy source may be exported to the grid.
type EnergyExports string

const (
	// EnergyExportsBatteryOK allows exporting from solar and the battery.
	EnergyExportsBatteryOK EnergyExports = "battery_ok"
	// EnergyExportsPVOnly only allows exporting solar generation.
	EnergyExportsPVOnly EnergyExports = "pv_only"
)

// Preset is a fixed configuration document applied to the energy system for a
// given time of day. Presets are handed out by value so callers can never
// modify the canonical copy.
type Preset struct {
	// Name is used for log and message text and is not sent to the API.
	Name string `json:"-"`

	// Minimum battery charge (in percent) the system must retain before
	// discharging further.
	BackupReservePercent int             `json:"backup_reserve_percent"`
	OperationalMode      OperationalMode `json:"operational_mode"`
	EnergyExports        EnergyExports   `json:"energy_exports"`
	// Whether the battery may be charged from the grid.
	GridCharging bool `json:"grid_charging"`
}

// Title returns the capitalized preset name, e.g. "Morning".
func (p Preset) Title() string {
	if p.Name == "" {
		return ""
	}
	return strings.ToUpper(p.Name[:1]) + p.Name[1:]
}

const (
	PresetNameMorning = "morning"
	PresetNameEvening = "evening"
)

// MorningPreset is the daytime preset: a shallow reserve, exports allowed once
// the battery is sufficiently charged and no grid charging.
func MorningPreset() Preset {
	return Preset{
		Name:                 PresetNameMorning,
		BackupReservePercent: 20,
		OperationalMode:      OperationalModeAutonomous,
		EnergyExports:        EnergyExportsBatteryOK,
		GridCharging:         false,
	}
}

// EveningPreset is the overnight preset: a full reserve, solar-only exports
// and grid charging enabled.
func EveningPreset() Preset {
	return Preset{
		Name:                 PresetNameEvening,
		BackupReservePercent: 100,
		OperationalMode:      OperationalModeAutonomous,
		EnergyExports:        EnergyExportsPVOnly,
		GridCharging:         true,
	}
}

// PresetByName returns the preset with the given name.
func PresetByName(name string) (Preset, bool) {
	switch strings.ToLower(name) {
	case PresetNameMorning:
		return MorningPreset(), true
	case PresetNameEvening:
		return EveningPreset(), true
	}
	return Preset{}, false
}

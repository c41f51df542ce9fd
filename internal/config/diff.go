package config

import "slices"

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; anything touching
// connections (database, Discord, wiki endpoints) requires a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// PersonalityModeChanged flags a switch of the canned-reply variant set.
	PersonalityModeChanged bool
	NewPersonalityMode     string

	// TokenBudgetChanged flags a prompt budget adjustment.
	TokenBudgetChanged bool
	NewTokenBudget     int

	// FleetChanged flags any change to the ship roster or name-correction
	// tables; the fleet map must be rebuilt.
	FleetChanged bool
}

// Changed reports whether the diff carries any hot-reloadable change.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.PersonalityModeChanged || d.TokenBudgetChanged || d.FleetChanged
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Prompt.PersonalityMode != new.Prompt.PersonalityMode {
		d.PersonalityModeChanged = true
		d.NewPersonalityMode = new.Prompt.PersonalityMode
	}
	if old.Prompt.TokenBudget != new.Prompt.TokenBudget {
		d.TokenBudgetChanged = true
		d.NewTokenBudget = new.Prompt.TokenBudget
	}
	if fleetChanged(old, new) {
		d.FleetChanged = true
	}
	return d
}

func fleetChanged(old, new *Config) bool {
	if !slices.Equal(old.Fleet.Ships, new.Fleet.Ships) ||
		!slices.Equal(old.Fleet.ShipLogCategories, new.Fleet.ShipLogCategories) ||
		!slices.Equal(old.Fleet.CharacterCategories, new.Fleet.CharacterCategories) ||
		!slices.Equal(old.Fleet.ShipCategories, new.Fleet.ShipCategories) {
		return true
	}
	if !mapsEqual(old.Fleet.GlobalCorrections, new.Fleet.GlobalCorrections) {
		return true
	}
	if len(old.Fleet.Corrections) != len(new.Fleet.Corrections) {
		return true
	}
	for ship, oldCorr := range old.Fleet.Corrections {
		newCorr, ok := new.Fleet.Corrections[ship]
		if !ok || !mapsEqual(oldCorr, newCorr) {
			return true
		}
	}
	return false
}

func mapsEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

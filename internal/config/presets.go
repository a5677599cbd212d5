package config

import "sort"

// Presets are named tunings layered over DefaultConfig.
var Presets = map[string]func() *Config{
	"default": DefaultConfig,
	"aggressive": func() *Config {
		cfg := DefaultConfig()
		cfg.Follower.MaxVelocity = 150
		cfg.Follower.MaxAcceleration = 400
		cfg.Follower.LookaheadMinDistance = 15
		cfg.Follower.LookaheadMaxDistance = 30
		cfg.Follower.LookaheadMaxSpeed = 150
		cfg.Drive.MaxSetpoint = 170
		cfg.Path.MaxDecel = 400
		return cfg
	},
	"gentle": func() *Config {
		cfg := DefaultConfig()
		cfg.Follower.MaxVelocity = 60
		cfg.Follower.MaxAcceleration = 150
		cfg.Follower.InertiaGain = 0.3
		cfg.Path.MaxDecel = 150
		return cfg
	},
	"laggy": func() *Config {
		cfg := DefaultConfig()
		cfg.Robot.VelocityLag = 0.08
		cfg.Sim.Integrator = "rk4"
		cfg.Sim.Substeps = 8
		return cfg
	},
}

// GetPreset returns a fresh copy of a preset, or nil if it is unknown.
func GetPreset(name string) *Config {
	fn, ok := Presets[name]
	if !ok {
		return nil
	}
	return fn()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

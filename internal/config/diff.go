package config

import "reflect"

// ConfigDiff describes what changed between two configs.
//
// Log level, lexicon and pipeline tuning can be applied to a running server.
// Provider changes and a new listen address need a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// LexiconChanged is set when the lexicon path changed. A lexicon file
	// edited in place is not detected here.
	LexiconChanged bool

	PipelineChanged bool

	// RestartRequired lists the top-level keys whose change only takes
	// effect after a restart.
	RestartRequired []string
}

// HotReloadable reports whether d contains anything that can be applied
// without a restart.
func (d ConfigDiff) HotReloadable() bool {
	return d.LogLevelChanged || d.LexiconChanged || d.PipelineChanged
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{
		LexiconChanged:  old.Lexicon != new.Lexicon,
		PipelineChanged: old.Pipeline != new.Pipeline,
	}
	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Server.ListenAddr != new.Server.ListenAddr || !reflect.DeepEqual(old.Server.AllowedOrigins, new.Server.AllowedOrigins) {
		d.RestartRequired = append(d.RestartRequired, "server")
	}
	if !reflect.DeepEqual(old.Providers, new.Providers) {
		d.RestartRequired = append(d.RestartRequired, "providers")
	}
	return d
}

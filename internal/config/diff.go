package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; everything else
// (backend URL, capture provider) requires a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	NotificationsChanged bool
	NotificationsEnabled bool

	PlaybackCommandChanged bool
	NewPlaybackCommand     string
}

// Empty reports whether nothing hot-reloadable changed.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.NotificationsChanged && !d.PlaybackCommandChanged
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Logging.Level != new.Logging.Level {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Logging.Level
	}
	if old.Notifications.Enabled != new.Notifications.Enabled {
		d.NotificationsChanged = true
		d.NotificationsEnabled = new.Notifications.Enabled
	}
	if old.Playback.Command != new.Playback.Command {
		d.PlaybackCommandChanged = true
		d.NewPlaybackCommand = new.Playback.Command
	}

	return d
}

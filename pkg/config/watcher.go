package config

import (
	"log/slog"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Watch logs configuration file changes. Step content and policy constants are
// read once at boot; the watcher only makes edits visible in the logs so an
// operator knows a restart is needed.
func Watch(v *viper.Viper, log *slog.Logger) {
	if v == nil {
		return
	}
	if log == nil {
		log = slog.Default()
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		log.Warn("config file changed on disk, restart to apply",
			slog.String("file", e.Name),
			slog.String("op", e.Op.String()),
		)
	})
	v.WatchConfig()
}

package logtrace

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger configures the global logger. An empty or unknown level keeps
// info.
func InitLogger(level ...string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	lvl := zerolog.InfoLevel
	if len(level) > 0 && level[0] != "" {
		if l, err := zerolog.ParseLevel(level[0]); err == nil {
			lvl = l
		}
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
}

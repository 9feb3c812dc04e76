package observability

import (
	"io"
	"os"
	"time"

	"github.com/danmuck/wabridge/internal/logging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func InitLogger(app string) zerolog.Logger {
	return InitLoggerTo(os.Stdout, app)
}

// InitLoggerTo installs the global logger writing to out.
func InitLoggerTo(out io.Writer, app string) zerolog.Logger {
	cfg := logging.Active()
	output := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
		NoColor:    cfg.NoColor,
	}
	ctx := zerolog.New(output).With().Str("app", app)
	if cfg.Timestamp {
		ctx = ctx.Timestamp()
	}
	logger := ctx.Logger()
	log.Logger = logger
	return logger
}

package whatsapp

import (
	"fmt"

	"github.com/rs/zerolog"
	waLog "go.mau.fi/whatsmeow/util/log"
)

// zlog bridges whatsmeow's logger interface onto zerolog.
type zlog struct {
	logger zerolog.Logger
}

func newLogger(base zerolog.Logger, identity, module string) waLog.Logger {
	return zlog{logger: base.With().Str("identity", identity).Str("module", module).Logger()}
}

func (l zlog) Errorf(msg string, args ...interface{}) {
	l.logger.Error().Msg(fmt.Sprintf(msg, args...))
}

func (l zlog) Warnf(msg string, args ...interface{}) {
	l.logger.Warn().Msg(fmt.Sprintf(msg, args...))
}

func (l zlog) Infof(msg string, args ...interface{}) {
	l.logger.Info().Msg(fmt.Sprintf(msg, args...))
}

func (l zlog) Debugf(msg string, args ...interface{}) {
	l.logger.Debug().Msg(fmt.Sprintf(msg, args...))
}

func (l zlog) Sub(module string) waLog.Logger {
	return zlog{logger: l.logger.With().Str("sub", module).Logger()}
}

package logging

import (
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type cronLogger struct {
	zap *zap.SugaredLogger
}

// CronLogger adapts l to the cron.Logger interface.
func CronLogger(l *Logger) cron.Logger {
	return &cronLogger{zap: OrNop(l).zap.Named("cron").Sugar()}
}

func (c *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.zap.Debugw(msg, keysAndValues...)
}

func (c *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.zap.Errorw(msg, append(keysAndValues, "error", err)...)
}

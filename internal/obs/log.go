package obs

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	loggerOnce sync.Once
	logger     *zap.SugaredLogger
)

// Logger returns the shared structured logger used across the service.
func Logger() *zap.SugaredLogger {
	loggerOnce.Do(func() {
		logger = newLogger(zap.InfoLevel)
	})
	return logger
}

// SetLogger swaps the shared logger and returns a restore func. Test hook.
func SetLogger(l *zap.SugaredLogger) (restore func()) {
	loggerOnce.Do(func() {
		logger = newLogger(zap.InfoLevel)
	})
	prev := logger
	logger = l
	return func() { logger = prev }
}

func newLogger(level zapcore.Level) *zap.SugaredLogger {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.AddSync(os.Stdout),
		level,
	)
	return zap.New(core, zap.AddCaller()).Sugar()
}

package meshpart

import (
	"log/slog"

	"github.com/sirupsen/logrus"

	"github.com/arloliu/meshpart/internal/logging"
)

// NewSlogLogger adapts a *slog.Logger to Logger. A nil logger uses slog.Default().
func NewSlogLogger(logger *slog.Logger) Logger {
	if logger == nil {
		return logging.NewSlogDefault()
	}

	return logging.NewSlog(logger)
}

// NewLogrusLogger adapts a logrus logger or entry to Logger.
//
// Example:
//
//	log := logrus.New()
//	log.SetLevel(logrus.DebugLevel)
//	lb, err := meshpart.NewLoadBalancer(&cfg, world, meshpart.WithLogger(meshpart.NewLogrusLogger(log)))
func NewLogrusLogger(logger logrus.FieldLogger) Logger {
	return logging.NewLogrus(logger)
}

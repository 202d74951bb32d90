package logging

import (
	"log"
	"sync"

	"go.uber.org/zap"

	"github.com/ucanapp/melibroker/internal/pkg/env"
)

var (
	logger *zap.Logger
	once   sync.Once
)

// Setup builds the process-wide structured logger. Development mode uses the
// human readable console encoder, production emits JSON for the collector.
func Setup() *zap.Logger {
	once.Do(func() {
		var err error
		if env.IsDev() {
			logger, err = zap.NewDevelopment()
		} else {
			logger, err = zap.NewProduction()
		}
		if err != nil {
			log.Fatalf("failed to initialize logger: %v", err)
		}
	})
	return logger
}

// GetLogger returns the shared logger, initializing it on first use.
func GetLogger() *zap.Logger {
	if logger == nil {
		return Setup()
	}
	return logger
}

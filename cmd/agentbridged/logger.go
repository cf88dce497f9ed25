package main

import "go.uber.org/zap"

// newLogger builds a zap logger matching the requested level, production
// JSON encoding in line with the rest of the pack's zap usage.
func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return cfg.Build()
}

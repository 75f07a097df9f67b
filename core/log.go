package core

import "go.uber.org/zap"

// defaultLogger is installed when a Store is opened without WithLogger.
// Mirrors the injection pattern in iamNilotpal/ignite's storage package: the
// engine never reaches for a package-level global logger, only what it was
// constructed with.
func defaultLogger() *zap.Logger {
	return zap.NewNop()
}

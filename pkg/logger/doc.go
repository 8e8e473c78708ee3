// Package logger provides structured logging for the CAGED ingester,
// built on zerolog.
//
// Components receive a Logger explicitly; the package-level global is a
// convenience for the CLI entry point only. The TestLogger implementation
// captures messages so tests can assert on what was narrated without
// sharing mutable global state.
//
// Usage:
//
//	log, err := logger.New(&cfg.Logging)
//	if err != nil {
//	    return err
//	}
//	log.WithField("folder", "2024/202401").Info("folder already processed, skipping")
package logger

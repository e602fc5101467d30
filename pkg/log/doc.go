// Package log provides the logging abstraction used by stableopt components.
//
// Library code never imports zerolog directly. It logs through [Logger],
// which the CLI satisfies with [ZerologAdapter] and tests satisfy with
// [NoopLogger]:
//
//	logger := log.NewZerologAdapterWithLogger(zerolog.New(os.Stderr))
//	logger.Info("poll complete", log.Int("rates", 12), log.Duration("took", d))
//
// Any other logging library can be plugged in by implementing the four
// level methods.
package log

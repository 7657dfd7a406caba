// Package logging provides structured logging for snapfind.
//
// # Overview
//
// Logging package wraps Zap with:
//   - Custom Trace level (-2, below Debug)
//   - JSON or console encoding to stderr (stdout carries search results)
//   - Automatic context field injection (trace_id, search.id)
//
// # Usage
//
//	cfg := logging.NewDefaultConfig()
//	logger, err := logging.NewLogger(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
//	ctx = logging.WithSearchID(ctx, id)
//	logger.Warn(ctx, "skipping image", zap.String("path", p), zap.Error(err))
//
// # Testing
//
// Use TestLogger for test assertions:
//
//	tl := logging.NewTestLogger()
//	ranker := ranking.NewRanker(provider, tl.Logger)
//	tl.AssertLogged(t, zapcore.WarnLevel, "skipping image")
//
// # Concurrency Safety
//
// Logger is safe for concurrent use. Child loggers (With, Named) are
// independent and do not affect parent or siblings.
package logging

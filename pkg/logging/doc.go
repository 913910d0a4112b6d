// Package logging builds the zap loggers used across ddexport.
//
// # Usage
//
// Create a logger with desired configuration:
//
//	logger := logging.New(logging.Config{
//	    Level:  logging.LevelInfo,
//	    Format: logging.FormatText,
//	})
//
//	logger.Info("agent listening", zap.String("addr", ":8126"))
//	logger.Error("failed to encode traces", zap.Error(err))
//
// # Output Formats
//
//   - Text: zap's console encoder, for humans
//   - JSON: one JSON object per line, for log aggregation systems
//
// # Integration
//
// Components accept a *zap.Logger through an option. If no logger is
// provided they use logging.Nop().
package logging

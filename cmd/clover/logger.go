package main

import (
	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Ramsey-B/clover/config"
	"github.com/Ramsey-B/clover/pkg/middleware"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

func newLogger(cfg config.Config) (ectologger.Logger, func(), error) {
	zapCfg := zap.NewProductionConfig()
	if cfg.PrettyLogs {
		zapCfg = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	zapLogger, err := zapCfg.Build(zap.Fields(
		zap.String("app", cfg.AppName),
		zap.String("version", cfg.Version),
	))
	if err != nil {
		return nil, nil, err
	}

	sync := func() { _ = zapLogger.Sync() }
	return zapadapter.NewZapEctoLogger(zapLogger, withRequestFields), sync, nil
}

// withRequestFields stamps trace and request ids carried on the log context
func withRequestFields(msg ectologger.EctoLogMessage) ectologger.EctoLogMessage {
	if msg.Ctx == nil {
		return msg
	}
	if msg.Fields == nil {
		msg.Fields = map[string]any{}
	}
	if traceID := tracing.GetTraceID(msg.Ctx); traceID != "" {
		msg.Fields["trace_id"] = traceID
	}
	if requestID := middleware.GetRequestID(msg.Ctx); requestID != "" {
		msg.Fields["request_id"] = requestID
	}
	return msg
}

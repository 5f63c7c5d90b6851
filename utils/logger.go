package utils

import (
	"context"
	"os"

	"github.com/CharellKing/ela-move/config"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

var logger = log.StandardLogger()

func InitLogger(cfg *config.Config) {
	levelMap := map[string]log.Level{
		"debug": log.DebugLevel,
		"info":  log.InfoLevel,
		"warn":  log.WarnLevel,
		"error": log.ErrorLevel,
	}

	level, ok := levelMap[cfg.Level]
	if !ok {
		level = log.InfoLevel
	}
	logger = &log.Logger{
		Out:       os.Stdout,
		Formatter: &log.JSONFormatter{},
		Hooks:     make(log.LevelHooks),
		Level:     level,
	}
}

// GetRunLogger returns an entry carrying whatever run-scoped fields are set
// on the context (run id, cluster versions, current index).
func GetRunLogger(ctx context.Context) *log.Entry {
	entry := log.NewEntry(logger)

	ctxKeyMap := map[CtxKey]func(ctx context.Context) string{
		CtxKeyRunID:           GetCtxKeyRunID,
		CtxKeySourceESVersion: GetCtxKeySourceESVersion,
		CtxKeyTargetESVersion: GetCtxKeyTargetESVersion,
		CtxKeyIndex:           GetCtxKeyIndex,
	}
	for key, ctxFunc := range ctxKeyMap {
		value := ctx.Value(key)
		if lo.IsNotEmpty(value) {
			entry = entry.WithField(string(key), ctxFunc(ctx))
		}
	}
	return entry
}

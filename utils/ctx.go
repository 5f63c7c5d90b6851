package utils

import (
	"context"

	"github.com/spf13/cast"
)

type CtxKey string

const (
	CtxKeyRunID           CtxKey = "runId"
	CtxKeySourceESVersion CtxKey = "sourceEsVersion"
	CtxKeyTargetESVersion CtxKey = "targetEsVersion"
	CtxKeyIndex           CtxKey = "index"

	CtxKeyShowProgress CtxKey = "showProgress"
)

func GetCtxKeyRunID(ctx context.Context) string {
	return cast.ToString(ctx.Value(CtxKeyRunID))
}

func SetCtxKeyRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, CtxKeyRunID, runID)
}

func GetCtxKeySourceESVersion(ctx context.Context) string {
	return cast.ToString(ctx.Value(CtxKeySourceESVersion))
}

func SetCtxKeySourceESVersion(ctx context.Context, version string) context.Context {
	return context.WithValue(ctx, CtxKeySourceESVersion, version)
}

func GetCtxKeyTargetESVersion(ctx context.Context) string {
	return cast.ToString(ctx.Value(CtxKeyTargetESVersion))
}

func SetCtxKeyTargetESVersion(ctx context.Context, version string) context.Context {
	return context.WithValue(ctx, CtxKeyTargetESVersion, version)
}

func GetCtxKeyIndex(ctx context.Context) string {
	return cast.ToString(ctx.Value(CtxKeyIndex))
}

func SetCtxKeyIndex(ctx context.Context, index string) context.Context {
	return context.WithValue(ctx, CtxKeyIndex, index)
}

func GetCtxKeyShowProgress(ctx context.Context) bool {
	return cast.ToBool(ctx.Value(CtxKeyShowProgress))
}

func SetCtxKeyShowProgress(ctx context.Context, showProgress bool) context.Context {
	return context.WithValue(ctx, CtxKeyShowProgress, showProgress)
}

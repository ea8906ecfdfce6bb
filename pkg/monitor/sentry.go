// Package monitor Sentry 错误上报
package monitor

import (
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/kmsv-2726/federated-socmed/config"
)

// Init DSN 为空时不启用，返回的 flush 总是可调用
func Init(cfg config.SentryConfig, release string) (flush func(), err error) {
	if cfg.DSN == "" {
		return func() {}, nil
	}
	err = sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          release,
		SampleRate:       cfg.SampleRate,
		AttachStacktrace: true,
	})
	if err != nil {
		return func() {}, err
	}
	return func() { sentry.Flush(2 * time.Second) }, nil
}

// Enabled 当前进程是否配置了 Sentry
func Enabled() bool {
	return sentry.CurrentHub().Client() != nil
}

// CaptureError 未启用时为空操作
func CaptureError(err error, tags map[string]string) {
	if err == nil || !Enabled() {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		sentry.CaptureException(err)
	})
}

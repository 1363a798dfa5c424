package proxy

import (
	"context"
	"time"

	"github.com/samvad-hq/samvad-feign-proxy/pkg/httpclient"
)

// Interceptor may rewrite an outbound request before it is sent, e.g. to add
// authentication headers. A non-nil error aborts the call.
type Interceptor func(ctx context.Context, req *httpclient.Request) error

// CallInfo describes one finished call.
type CallInfo struct {
	Contract  string
	Operation string
	Method    string
	Status    int // 0 when no response was received
	Duration  time.Duration
	Err       error
}

// Observer is notified after every call. Implementations must be safe for
// concurrent use.
type Observer interface {
	ObserveCall(info CallInfo)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(info CallInfo)

func (f ObserverFunc) ObserveCall(info CallInfo) { f(info) }

type nopObserver struct{}

func (nopObserver) ObserveCall(CallInfo) {}

// Logger defines the logging surface the proxy relies on.
type Logger interface {
	InfoObj(msg, key string, obj interface{})
	DebugObj(msg, key string, obj interface{})
	WarnObj(msg, key string, obj interface{})
	ErrorObj(msg, key string, obj interface{})
}

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) InfoObj(string, string, interface{})  {}
func (NopLogger) DebugObj(string, string, interface{}) {}
func (NopLogger) WarnObj(string, string, interface{})  {}
func (NopLogger) ErrorObj(string, string, interface{}) {}

// EnsureLogger returns log, or a NopLogger when log is nil.
func EnsureLogger(log Logger) Logger {
	if log == nil {
		return NopLogger{}
	}
	return log
}

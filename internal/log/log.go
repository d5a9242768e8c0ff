/*
Copyright pg-auto-ha Contributors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package log provides a context-carrying structured logger used by every
// subsystem of the monitor and the keeper. It wraps go.uber.org/zap behind
// the github.com/go-logr/logr interface, the same pairing the rest of this
// codebase's lineage uses for its own instance manager.
package log

import (
	"context"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ctxKeyType struct{}

var ctxKey = ctxKeyType{}

var root logr.Logger

func init() {
	root = NewZapLogger(false)
}

// NewZapLogger builds a logr.Logger backed by zap, in either production
// (JSON, info level) or development (console, debug level) mode.
func NewZapLogger(debug bool) logr.Logger {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		cfg = zap.NewProductionConfig()
	}
	zl, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return zapr.NewLogger(zl)
}

// SetGlobal replaces the process-wide root logger, used once at start-up
// after command-line flags have been parsed.
func SetGlobal(l logr.Logger) {
	root = l
}

// IntoContext attaches a logger (with the supplied key/value pairs already
// bound) to the context, returning the derived context.
func IntoContext(ctx context.Context, l logr.Logger) context.Context {
	return context.WithValue(ctx, ctxKey, l)
}

// FromContext returns the logger carried by ctx, or the process-wide root
// logger if none was attached.
func FromContext(ctx context.Context) logr.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxKey).(logr.Logger); ok {
			return l
		}
	}
	return root
}

// SetupLogger attaches a named logger to ctx and returns both, the
// convention used at the top of every tick/reconcile-style entry point.
func SetupLogger(ctx context.Context, keysAndValues ...interface{}) (logr.Logger, context.Context) {
	l := root.WithValues(keysAndValues...)
	return l, IntoContext(ctx, l)
}

// GetLogger returns the process-wide root logger, for call sites that have
// no context at hand (e.g. early start-up, signal handlers).
func GetLogger() logr.Logger {
	return root
}

// Copyright (c) 2019-2021, F5 Networks, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package jsonlog writes vlogger messages as one JSON object per line using
// zerolog. Each line carries "level", "time", "message" and the fixed
// fields passed at construction (for example the managed partition).
package jsonlog

import (
	"fmt"
	"io"
	"log/syslog"
	"sync"

	"github.com/rs/zerolog"
)

type jsonLogger struct {
	mu         sync.Mutex
	slLogLevel syslog.Priority
	zl         zerolog.Logger
	closer     io.Closer
	closed     bool
}

// NewJSONLogger writes to w. Extra fields are attached to every line. If w
// is also an io.Closer it is closed by Close.
func NewJSONLogger(w io.Writer, fields map[string]string) *jsonLogger {
	ctx := zerolog.New(w).With().Timestamp()
	for k, v := range fields {
		ctx = ctx.Str(k, v)
	}
	jl := &jsonLogger{
		slLogLevel: syslog.LOG_DEBUG,
		zl:         ctx.Logger(),
	}
	if c, ok := w.(io.Closer); ok {
		jl.closer = c
	}
	return jl
}

func (jl *jsonLogger) enabled(p syslog.Priority) bool {
	jl.mu.Lock()
	defer jl.mu.Unlock()
	return !jl.closed && jl.slLogLevel >= p
}

func (jl *jsonLogger) Debug(msg string) {
	if jl.enabled(syslog.LOG_DEBUG) {
		jl.zl.Debug().Msg(msg)
	}
}

func (jl *jsonLogger) Debugf(format string, params ...interface{}) {
	if jl.enabled(syslog.LOG_DEBUG) {
		jl.zl.Debug().Msg(fmt.Sprintf(format, params...))
	}
}

func (jl *jsonLogger) Info(msg string) {
	if jl.enabled(syslog.LOG_INFO) {
		jl.zl.Info().Msg(msg)
	}
}

func (jl *jsonLogger) Infof(format string, params ...interface{}) {
	if jl.enabled(syslog.LOG_INFO) {
		jl.zl.Info().Msg(fmt.Sprintf(format, params...))
	}
}

func (jl *jsonLogger) Warning(msg string) {
	if jl.enabled(syslog.LOG_WARNING) {
		jl.zl.Warn().Msg(msg)
	}
}

func (jl *jsonLogger) Warningf(format string, params ...interface{}) {
	if jl.enabled(syslog.LOG_WARNING) {
		jl.zl.Warn().Msg(fmt.Sprintf(format, params...))
	}
}

func (jl *jsonLogger) Error(msg string) {
	if jl.enabled(syslog.LOG_ERR) {
		jl.zl.Error().Msg(msg)
	}
}

func (jl *jsonLogger) Errorf(format string, params ...interface{}) {
	if jl.enabled(syslog.LOG_ERR) {
		jl.zl.Error().Msg(fmt.Sprintf(format, params...))
	}
}

// zerolog has no critical level; fatal would exit, so critical lines are
// written at error level with a marker field.
func (jl *jsonLogger) Critical(msg string) {
	if jl.enabled(syslog.LOG_CRIT) {
		jl.zl.Error().Bool("critical", true).Msg(msg)
	}
}

func (jl *jsonLogger) Criticalf(format string, params ...interface{}) {
	if jl.enabled(syslog.LOG_CRIT) {
		jl.zl.Error().Bool("critical", true).Msg(fmt.Sprintf(format, params...))
	}
}

func (jl *jsonLogger) SetLogLevel(slLogLevel syslog.Priority) {
	jl.mu.Lock()
	defer jl.mu.Unlock()
	jl.slLogLevel = slLogLevel
}

func (jl *jsonLogger) GetLogLevel() syslog.Priority {
	jl.mu.Lock()
	defer jl.mu.Unlock()
	return jl.slLogLevel
}

// Close is safe to call more than once; the facade closes each registered
// level.
func (jl *jsonLogger) Close() {
	jl.mu.Lock()
	defer jl.mu.Unlock()
	if jl.closed {
		return
	}
	jl.closed = true
	if jl.closer != nil {
		jl.closer.Close()
	}
}

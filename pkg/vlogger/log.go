// +gocover:ignore:file logging package
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

package vlogger

import (
	"fmt"
	"log/syslog"
	"os"
	"strings"
	"sync"
)

// LogLevel filters messages at the package level before they reach a
// backend. Higher values are more severe.
type LogLevel int

const (
	// Must stay in ascending order of severity.
	LL_DEBUG = iota
	LL_INFO
	LL_WARNING
	LL_ERROR
	LL_CRITICAL
	LL_LOGLEVEL_SIZE

	LL_MIN_LEVEL = LL_DEBUG
	LL_MAX_LEVEL = LL_LOGLEVEL_SIZE - 1
)

var levelNames = [LL_LOGLEVEL_SIZE]string{
	"debug",
	"info",
	"warning",
	"error",
	"critical",
}

// Backends filter with syslog priorities, which run the other way round
// (0 is the most severe).
var levelPriorities = [LL_LOGLEVEL_SIZE]syslog.Priority{
	syslog.LOG_DEBUG,
	syslog.LOG_INFO,
	syslog.LOG_WARNING,
	syslog.LOG_ERR,
	syslog.LOG_CRIT,
}

// String converts a LogLevel to its flag/config spelling.
func (ll LogLevel) String() string {
	if ll < LL_MIN_LEVEL || ll > LL_MAX_LEVEL {
		return "invalid"
	}
	return levelNames[ll]
}

// Priority returns the syslog priority matching the level.
func (ll LogLevel) Priority() syslog.Priority {
	if ll < LL_MIN_LEVEL || ll > LL_MAX_LEVEL {
		return syslog.LOG_DEBUG
	}
	return levelPriorities[ll]
}

// NewLogLevel parses a level name, case insensitive. Unknown or empty names
// return nil.
func NewLogLevel(s string) *LogLevel {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range levelNames {
		if name == s {
			r := LogLevel(i)
			return &r
		}
	}
	return nil
}

// MarshalJSON writes the level as a quoted name.
func (ll LogLevel) MarshalJSON() ([]byte, error) {
	return []byte("\"" + ll.String() + "\""), nil
}

// UnmarshalJSON reads a quoted level name.
func (ll *LogLevel) UnmarshalJSON(data []byte) error {
	parsed := NewLogLevel(strings.Trim(string(data), "\""))
	if parsed == nil {
		return fmt.Errorf("unable to unmarshal %s to a log level", string(data))
	}
	*ll = *parsed
	return nil
}

// Logger is implemented by every backend.
type Logger interface {
	Debug(string)
	Debugf(string, ...interface{})
	Info(string)
	Infof(string, ...interface{})
	Warning(string)
	Warningf(string, ...interface{})
	Error(string)
	Errorf(string, ...interface{})
	Critical(string)
	Criticalf(string, ...interface{})
	GetLogLevel() syslog.Priority
	SetLogLevel(syslog.Priority)
	Close()
}

var (
	mu       sync.RWMutex
	vlog     [LL_LOGLEVEL_SIZE]Logger
	logLevel LogLevel = LL_DEBUG
)

// RegisterLogger routes every level in [minLogLevel, maxLogLevel] to log.
func RegisterLogger(minLogLevel, maxLogLevel LogLevel, log Logger) {
	mu.Lock()
	defer mu.Unlock()
	for level := minLogLevel; level <= maxLogLevel; level++ {
		vlog[level] = log
	}
}

func backend(level LogLevel) Logger {
	mu.RLock()
	defer mu.RUnlock()
	return vlog[level]
}

func Debug(msg string) { backend(LL_DEBUG).Debug(msg) }

func Debugf(format string, params ...interface{}) {
	backend(LL_DEBUG).Debugf(format, params...)
}

func Info(msg string) { backend(LL_INFO).Info(msg) }

func Infof(format string, params ...interface{}) {
	backend(LL_INFO).Infof(format, params...)
}

func Warning(msg string) { backend(LL_WARNING).Warning(msg) }

func Warningf(format string, params ...interface{}) {
	backend(LL_WARNING).Warningf(format, params...)
}

func Error(msg string) { backend(LL_ERROR).Error(msg) }

func Errorf(format string, params ...interface{}) {
	backend(LL_ERROR).Errorf(format, params...)
}

func Critical(msg string) { backend(LL_CRITICAL).Critical(msg) }

func Criticalf(format string, params ...interface{}) {
	backend(LL_CRITICAL).Criticalf(format, params...)
}

// Fatalf logs at CRITICAL, closes the backends and exits. Only main should
// call it.
func Fatalf(format string, params ...interface{}) {
	backend(LL_CRITICAL).Criticalf(format, params...)
	Close()
	os.Exit(1)
}

// Panicf logs at CRITICAL and panics with the same message.
func Panicf(format string, params ...interface{}) {
	msg := fmt.Sprintf(format, params...)
	backend(LL_CRITICAL).Critical(msg)
	panic(msg)
}

// SetLogLevel changes the package level and pushes it to every backend.
func SetLogLevel(level LogLevel) {
	mu.Lock()
	logLevel = level
	loggers := vlog
	mu.Unlock()
	for _, l := range loggers {
		if l != nil {
			l.SetLogLevel(level.Priority())
		}
	}
}

// GetLogLevel returns the package level.
func GetLogLevel() LogLevel {
	mu.RLock()
	defer mu.RUnlock()
	return logLevel
}

// Close flushes and releases every registered backend.
func Close() {
	mu.RLock()
	loggers := vlog
	mu.RUnlock()
	for _, l := range loggers {
		if l != nil {
			l.Close()
		}
	}
}

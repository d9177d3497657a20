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

// Package console writes vlogger messages as text lines through the
// standard library log package.
package console

import (
	"fmt"
	"io"
	"log"
	"log/syslog"
	"os"
)

type consoleLogger struct {
	// syslog ordering: lower values are more severe
	slLogLevel syslog.Priority
	out        *log.Logger
}

// NewConsoleLogger logs to stderr with the standard date/time prefix.
func NewConsoleLogger() *consoleLogger {
	return NewConsoleLoggerExt(os.Stderr, "", log.LstdFlags)
}

// NewConsoleLoggerExt logs to w with a custom prefix and log flags.
func NewConsoleLoggerExt(w io.Writer, prefix string, flags int) *consoleLogger {
	return &consoleLogger{
		slLogLevel: syslog.LOG_DEBUG,
		out:        log.New(w, prefix, flags),
	}
}

func (cl *consoleLogger) emit(p syslog.Priority, tag, msg string) {
	if cl.slLogLevel >= p {
		cl.out.Println(tag, msg)
	}
}

func (cl *consoleLogger) Debug(msg string) {
	cl.emit(syslog.LOG_DEBUG, "[DEBUG]", msg)
}

func (cl *consoleLogger) Debugf(format string, params ...interface{}) {
	cl.emit(syslog.LOG_DEBUG, "[DEBUG]", fmt.Sprintf(format, params...))
}

func (cl *consoleLogger) Info(msg string) {
	cl.emit(syslog.LOG_INFO, "[INFO]", msg)
}

func (cl *consoleLogger) Infof(format string, params ...interface{}) {
	cl.emit(syslog.LOG_INFO, "[INFO]", fmt.Sprintf(format, params...))
}

func (cl *consoleLogger) Warning(msg string) {
	cl.emit(syslog.LOG_WARNING, "[WARNING]", msg)
}

func (cl *consoleLogger) Warningf(format string, params ...interface{}) {
	cl.emit(syslog.LOG_WARNING, "[WARNING]", fmt.Sprintf(format, params...))
}

func (cl *consoleLogger) Error(msg string) {
	cl.emit(syslog.LOG_ERR, "[ERROR]", msg)
}

func (cl *consoleLogger) Errorf(format string, params ...interface{}) {
	cl.emit(syslog.LOG_ERR, "[ERROR]", fmt.Sprintf(format, params...))
}

func (cl *consoleLogger) Critical(msg string) {
	cl.emit(syslog.LOG_CRIT, "[CRITICAL]", msg)
}

func (cl *consoleLogger) Criticalf(format string, params ...interface{}) {
	cl.emit(syslog.LOG_CRIT, "[CRITICAL]", fmt.Sprintf(format, params...))
}

func (cl *consoleLogger) SetLogLevel(slLogLevel syslog.Priority) {
	cl.slLogLevel = slLogLevel
}

func (cl *consoleLogger) GetLogLevel() syslog.Priority {
	return cl.slLogLevel
}

func (cl *consoleLogger) Close() {
}

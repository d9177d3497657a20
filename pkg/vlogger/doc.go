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

/*
Package vlogger is the logging facade used by every package of the
reconciler. Library code logs through the package-level functions and never
knows which backend is writing the lines:

	log.Debugf("[CCCL] creating %d resources", n)
	log.Warningf("[BigIP] resource %s already exists", path)

Applications pick a backend once, early in main, and register it for the
range of levels it should receive:

	logger := console.NewConsoleLogger()
	log.RegisterLogger(log.LL_MIN_LEVEL, log.LL_MAX_LEVEL, logger)
	if ll := log.NewLogLevel("info"); ll != nil {
		log.SetLogLevel(*ll)
	}
	defer log.Close()

Two backends are provided as subpackages:

	console   plain text lines through the standard library log package
	jsonlog   one JSON object per line, written by zerolog

Until a backend is registered every message is dropped, so libraries can log
freely from tests and from init code.
*/
package vlogger

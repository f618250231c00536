// Copyright 2025 Kadir Pekel
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

package main

import (
	"fmt"
	"os"

	"github.com/kadirpekel/scout/pkg/config"
	"github.com/kadirpekel/scout/pkg/logger"
)

const (
	LogFileEnvVar   = "LOG_FILE"
	LogLevelEnvVar  = "LOG_LEVEL"
	LogFormatEnvVar = "LOG_FORMAT"
)

// initLogger initializes logging from CLI flags, falling back to the
// environment and then to defaults.
func initLogger(level, file, format string) (func(), error) {
	level = firstNonEmpty(level, os.Getenv(LogLevelEnvVar), "info")
	file = firstNonEmpty(file, os.Getenv(LogFileEnvVar))
	format = firstNonEmpty(format, os.Getenv(LogFormatEnvVar), "simple")
	return applyLogger(level, file, format)
}

// applyConfigLogger applies the config file's logger section for the
// settings the flags and environment left unset.
func applyConfigLogger(cli *CLI, cfg *config.LoggerConfig) (func(), error) {
	level := firstNonEmpty(cli.LogLevel, os.Getenv(LogLevelEnvVar), cfg.Level, "info")
	file := firstNonEmpty(cli.LogFile, os.Getenv(LogFileEnvVar), cfg.File)
	format := firstNonEmpty(cli.LogFormat, os.Getenv(LogFormatEnvVar), cfg.Format, "simple")
	return applyLogger(level, file, format)
}

func applyLogger(levelName, file, format string) (func(), error) {
	level, err := logger.ParseLevel(levelName)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	output := os.Stderr
	var cleanup func()
	if file != "" {
		f, closeFn, err := logger.OpenLogFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		output = f
		cleanup = closeFn
	}

	logger.Init(level, output, format)
	return cleanup, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

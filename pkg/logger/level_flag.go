/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package logger

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Level names of the debug session diagnostic log are accepted too.
	levelStrings = map[string]zapcore.Level{
		"debug":   zap.DebugLevel,
		"verbose": zap.DebugLevel,
		"info":    zap.InfoLevel,
		"log":     zap.InfoLevel,
		"warn":    zap.WarnLevel,
		"error":   zap.ErrorLevel,
	}
)

// LevelFlagValue is a pflag value that applies the console log level as soon as the flag is parsed.
type LevelFlagValue struct {
	onLevelAvailable func(zapcore.Level)
	value            string
}

func NewLevelFlagValue(onLevelAvailable func(zapcore.Level)) LevelFlagValue {
	return LevelFlagValue{
		onLevelAvailable: onLevelAvailable,
	}
}

// StringToLevel parses a level name or a positive debug verbosity number.
func StringToLevel(value string, defaultLevel zapcore.Level) (zapcore.Level, error) {
	if level, namedLevel := levelStrings[strings.ToLower(strings.TrimSpace(value))]; namedLevel {
		return level, nil
	}

	logLevel, err := strconv.Atoi(value)
	if err != nil || logLevel <= 0 {
		return defaultLevel, fmt.Errorf("invalid log level \"%s\"", value)
	}

	// Zap has the levels backwards
	return zapcore.Level(int8(-logLevel)), nil
}

func (lfv *LevelFlagValue) Set(flagValue string) error {
	level, err := StringToLevel(flagValue, zapcore.InfoLevel)
	if err != nil {
		return err
	}

	lfv.onLevelAvailable(level)
	lfv.value = flagValue
	return nil
}

func (lfv *LevelFlagValue) String() string {
	return lfv.value
}

func (_ *LevelFlagValue) Type() string {
	return "level"
}

// VerbosityChanged reports whether the verbosity flag was given on the command line.
func VerbosityChanged(fs *pflag.FlagSet) bool {
	if fs == nil || fs.Lookup(verbosityFlagName) == nil {
		return false
	}
	return fs.Changed(verbosityFlagName)
}

/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/cvet/fonline-sub001/pkg/process"
)

const (
	// Path of the configuration file used when --config is not given.
	MOCKDAP_CONFIG = "MOCKDAP_CONFIG"

	DefaultEnvFile = ".env"

	serverFlagName   = "server"
	wsFlagName       = "ws"
	wsOriginFlagName = "ws-allowed-origin"
	logFileFlagName  = "log-file"
	traceFlagName    = "trace"
	configFlagName   = "config"

	maxPort = 65535
)

// Config holds the settings of the adapter process.
// Every setting can come from a command line flag or from the YAML configuration file; flags win.
type Config struct {
	// Server is the TCP port to accept debug sessions on. Zero means a single session over stdio.
	Server int `yaml:"server,omitempty"`

	// WebSocket is the address to accept debug sessions over WebSocket connections on.
	WebSocket string `yaml:"ws,omitempty"`

	// WebSocketOrigins are the browser origins, besides the server's own, allowed to open WebSocket sessions.
	WebSocketOrigins []string `yaml:"wsAllowedOrigins,omitempty"`

	// LogFile is the diagnostic log file of the sessions.
	LogFile string `yaml:"logFile,omitempty"`

	// Trace turns the protocol trace on for every session.
	Trace bool `yaml:"trace,omitempty"`

	// Verbosity is the process log level, used when -v is not given.
	Verbosity string `yaml:"verbosity,omitempty"`

	MonitorPid      int64 `yaml:"monitor,omitempty"`
	MonitorInterval uint8 `yaml:"monitorInterval,omitempty"`

	configFile string
}

func addConfigFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.IntVar(&cfg.Server, serverFlagName, 0, "If present, accepts debug sessions as TCP connections on the given port instead of using stdin and stdout.")
	fs.StringVar(&cfg.WebSocket, wsFlagName, "", "If present, accepts debug sessions as WebSocket connections on the given address (e.g. localhost:4712).")
	fs.StringSliceVar(&cfg.WebSocketOrigins, wsOriginFlagName, nil, "Browser origin allowed to open WebSocket sessions in addition to the server's own origin (e.g. http://localhost:3000). Can be repeated; '*' allows any origin.")
	fs.StringVar(&cfg.LogFile, logFileFlagName, "", "Path of the diagnostic log file written by debug sessions.")
	fs.BoolVar(&cfg.Trace, traceFlagName, false, "Traces the debug adapter protocol traffic of every session.")
	fs.StringVar(&cfg.configFile, configFlagName, os.Getenv(MOCKDAP_CONFIG), "Path of a YAML configuration file. Command line flags take precedence over its settings.")
	addMonitorFlags(fs, cfg)
}

// LoadConfigFile reads a YAML configuration file.
func LoadConfigFile(path string) (Config, error) {
	contents, readErr := os.ReadFile(path)
	if readErr != nil {
		return Config{}, fmt.Errorf("could not read configuration file '%s': %w", path, readErr)
	}

	var cfg Config
	if unmarshalErr := yaml.Unmarshal(contents, &cfg); unmarshalErr != nil {
		return Config{}, fmt.Errorf("configuration file '%s' is not valid: %w", path, unmarshalErr)
	}
	return cfg, nil
}

// resolve merges the configuration file, if any, into the settings not set on the command line.
func (cfg *Config) resolve(fs *pflag.FlagSet) error {
	if cfg.configFile != "" {
		fileCfg, loadErr := LoadConfigFile(cfg.configFile)
		if loadErr != nil {
			return loadErr
		}
		cfg.merge(fs, fileCfg)
	}

	return cfg.validate()
}

func (cfg *Config) merge(fs *pflag.FlagSet, fileCfg Config) {
	if !fs.Changed(serverFlagName) && fileCfg.Server != 0 {
		cfg.Server = fileCfg.Server
	}
	if !fs.Changed(wsFlagName) && fileCfg.WebSocket != "" {
		cfg.WebSocket = fileCfg.WebSocket
	}
	if !fs.Changed(wsOriginFlagName) && len(fileCfg.WebSocketOrigins) > 0 {
		cfg.WebSocketOrigins = fileCfg.WebSocketOrigins
	}
	if !fs.Changed(logFileFlagName) && fileCfg.LogFile != "" {
		cfg.LogFile = fileCfg.LogFile
	}
	if !fs.Changed(traceFlagName) && fileCfg.Trace {
		cfg.Trace = true
	}
	if !fs.Changed(monitorFlagName) && fileCfg.MonitorPid != 0 {
		cfg.MonitorPid = fileCfg.MonitorPid
	}
	if !fs.Changed(monitorIntervalFlagName) && fileCfg.MonitorInterval != 0 {
		cfg.MonitorInterval = fileCfg.MonitorInterval
	}
	if fileCfg.Verbosity != "" {
		cfg.Verbosity = fileCfg.Verbosity
	}
}

func (cfg *Config) validate() error {
	if cfg.Server < 0 || cfg.Server > maxPort {
		return fmt.Errorf("server port must be a valid port number (1-65535), not %d", cfg.Server)
	}
	if cfg.Server != 0 && cfg.WebSocket != "" {
		return fmt.Errorf("--%s and --%s cannot be used together", serverFlagName, wsFlagName)
	}
	if cfg.MonitorPid == 0 {
		cfg.MonitorPid = int64(process.UnknownPID)
	}

	if cfg.LogFile != "" && !filepath.IsAbs(cfg.LogFile) {
		absPath, absErr := filepath.Abs(cfg.LogFile)
		if absErr != nil {
			return fmt.Errorf("log file path '%s' cannot be made absolute: %w", cfg.LogFile, absErr)
		}
		cfg.LogFile = absPath
	}

	return nil
}

// LoadEnvFile adds the variables defined in a .env file to the process environment.
// Variables that are already set are not overridden. A missing file is not an error.
func LoadEnvFile(path string) error {
	if loadErr := godotenv.Load(path); loadErr != nil {
		if errors.Is(loadErr, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("could not load environment file '%s': %w", path, loadErr)
	}
	return nil
}

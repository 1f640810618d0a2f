/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/cvet/fonline-sub001/pkg/process"
)

func writeFile(t *testing.T, name string, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0600))
	return path
}

func newConfigFlags(t *testing.T, args ...string) (*pflag.FlagSet, *Config) {
	t.Helper()
	cfg := &Config{}
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	addConfigFlags(fs, cfg)
	require.NoError(t, fs.Parse(args))
	return fs, cfg
}

func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "mockdap.yaml", `
server: 4711
logFile: /tmp/mockdap.log
trace: true
verbosity: debug
monitor: 1234
monitorInterval: 3
wsAllowedOrigins:
  - http://localhost:3000
`)

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)
	require.Equal(t, 4711, cfg.Server)
	require.Equal(t, "/tmp/mockdap.log", cfg.LogFile)
	require.True(t, cfg.Trace)
	require.Equal(t, "debug", cfg.Verbosity)
	require.Equal(t, int64(1234), cfg.MonitorPid)
	require.Equal(t, uint8(3), cfg.MonitorInterval)
	require.Equal(t, []string{"http://localhost:3000"}, cfg.WebSocketOrigins)
}

func TestLoadConfigFileErrors(t *testing.T) {
	t.Parallel()

	_, err := LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)

	_, err = LoadConfigFile(writeFile(t, "bad.yaml", "server: [1, 2"))
	require.ErrorContains(t, err, "is not valid")
}

func TestFlagsTakePrecedenceOverConfigFile(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "mockdap.yaml", "server: 4711\ntrace: true\nlogFile: /tmp/from-file.log\n")
	fs, cfg := newConfigFlags(t, "--config", path, "--server", "5000")

	require.NoError(t, cfg.resolve(fs))
	require.Equal(t, 5000, cfg.Server)
	require.True(t, cfg.Trace)
	require.Equal(t, "/tmp/from-file.log", cfg.LogFile)
	require.Equal(t, int64(process.UnknownPID), cfg.MonitorPid)
}

func TestWebSocketOriginsFromFlagsOrFile(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "mockdap.yaml", "ws: localhost:4712\nwsAllowedOrigins: [http://from-file]\n")

	fs, cfg := newConfigFlags(t, "--config", path)
	require.NoError(t, cfg.resolve(fs))
	require.Equal(t, []string{"http://from-file"}, cfg.WebSocketOrigins)

	fs, cfg = newConfigFlags(t, "--config", path, "--ws-allowed-origin", "http://a", "--ws-allowed-origin", "http://b")
	require.NoError(t, cfg.resolve(fs))
	require.Equal(t, []string{"http://a", "http://b"}, cfg.WebSocketOrigins)
}

func TestConfigValidation(t *testing.T) {
	t.Parallel()

	type testcase struct {
		description string
		args        []string
		errContains string
	}

	testcases := []testcase{
		{"port out of range", []string{"--server", "70000"}, "valid port number"},
		{"negative port", []string{"--server", "-1"}, "valid port number"},
		{"server and websocket", []string{"--server", "4711", "--ws", "localhost:4712"}, "cannot be used together"},
		{"stdio", []string{}, ""},
		{"websocket", []string{"--ws", "localhost:4712"}, ""},
	}

	for _, tc := range testcases {
		t.Run(tc.description, func(t *testing.T) {
			t.Parallel()

			fs, cfg := newConfigFlags(t, tc.args...)
			err := cfg.resolve(fs)
			if tc.errContains == "" {
				require.NoError(t, err)
			} else {
				require.ErrorContains(t, err, tc.errContains)
			}
		})
	}
}

func TestRelativeLogFileIsMadeAbsolute(t *testing.T) {
	t.Parallel()

	fs, cfg := newConfigFlags(t, "--log-file", "mockdap.log")
	require.NoError(t, cfg.resolve(fs))
	require.True(t, filepath.IsAbs(cfg.LogFile))
	require.Equal(t, "mockdap.log", filepath.Base(cfg.LogFile))
}

// Not parallel: modifies the process environment.
func TestLoadEnvFile(t *testing.T) {
	const newVar = "MOCKDAP_TEST_ENV_FILE_NEW"
	const presetVar = "MOCKDAP_TEST_ENV_FILE_PRESET"

	t.Setenv(presetVar, "keep")
	t.Cleanup(func() { _ = os.Unsetenv(newVar) })

	path := writeFile(t, ".env", newVar+"=hello\n"+presetVar+"=other\n")
	require.NoError(t, LoadEnvFile(path))

	require.Equal(t, "hello", os.Getenv(newVar))
	require.Equal(t, "keep", os.Getenv(presetVar))

	require.NoError(t, LoadEnvFile(filepath.Join(t.TempDir(), ".env")), "a missing file is not an error")
}

/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package version

import (
	"bytes"
	"runtime"
	"runtime/debug"
	"strconv"
	"time"
)

const (
	DevelopmentVersion = "dev"
)

// Set with -ldflags "-X" at build time.
var (
	ProductVersion = DevelopmentVersion
	CommitHash     = ""
	BuildTimestamp = ""
)

type MyTime struct {
	*time.Time
}

func (t *MyTime) MarshalJSON() ([]byte, error) {
	if t.Time == nil || t.Time.IsZero() {
		return []byte("null"), nil
	}

	return []byte("\"" + t.Time.Format(time.RFC3339) + "\""), nil
}

// UnmarshalJSON implements the json.Unmarshaler interface.
// The time is expected to be a quoted string in RFC 3339 format.
func (t *MyTime) UnmarshalJSON(data []byte) (err error) {
	// by convention, unmarshalers implement UnmarshalJSON([]byte("null")) as a no-op.
	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	tt, err := time.Parse("\""+time.RFC3339+"\"", string(data))
	*t = MyTime{&tt}
	return
}

type VersionOutput struct {
	Version    string  `json:"version"`
	CommitHash string  `json:"commitHash,omitempty"`
	BuildTime  *MyTime `json:"buildTimestamp,omitempty"`
	GoVersion  string  `json:"goVersion"`
	Platform   string  `json:"platform"`
}

func Version() VersionOutput {
	productVersion := ProductVersion
	if productVersion == "" {
		productVersion = DevelopmentVersion
	}

	commitHash := CommitHash
	buildTime := parseBuildTimestamp(BuildTimestamp)

	// Binaries built without -ldflags still carry the VCS stamp of the module
	if commitHash == "" || buildTime.IsZero() {
		if bi, found := debug.ReadBuildInfo(); found {
			for _, setting := range bi.Settings {
				switch {
				case setting.Key == "vcs.revision" && commitHash == "":
					commitHash = setting.Value
				case setting.Key == "vcs.time" && buildTime.IsZero():
					buildTime = parseBuildTimestamp(setting.Value)
				}
			}
		}
	}

	return VersionOutput{
		Version:    productVersion,
		CommitHash: commitHash,
		BuildTime:  &MyTime{&buildTime},
		GoVersion:  runtime.Version(),
		Platform:   runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// parseBuildTimestamp accepts Unix seconds or an RFC 3339 time. Anything else yields the zero time.
func parseBuildTimestamp(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if seconds, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Unix(seconds, 0)
	}
	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		return parsed
	}
	return time.Time{}
}

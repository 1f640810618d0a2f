/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package version

import (
	"encoding/json"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseBuildTimestamp(t *testing.T) {
	t.Parallel()

	require.Equal(t, time.Unix(1700000000, 0), parseBuildTimestamp("1700000000"))
	require.True(t, parseBuildTimestamp("2024-05-01T10:00:00Z").Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)))
	require.True(t, parseBuildTimestamp("").IsZero())
	require.True(t, parseBuildTimestamp("yesterday").IsZero())
}

func TestVersionOutputJSON(t *testing.T) {
	t.Parallel()

	vo := Version()
	require.Equal(t, DevelopmentVersion, vo.Version)
	require.Equal(t, runtime.Version(), vo.GoVersion)
	require.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, vo.Platform)

	serialized, err := json.Marshal(vo)
	require.NoError(t, err)

	var roundTripped VersionOutput
	require.NoError(t, json.Unmarshal(serialized, &roundTripped))
	require.Equal(t, vo.Version, roundTripped.Version)
	require.Equal(t, vo.Platform, roundTripped.Platform)
}

func TestZeroBuildTimeIsNull(t *testing.T) {
	t.Parallel()

	serialized, err := json.Marshal(&MyTime{&time.Time{}})
	require.NoError(t, err)
	require.Equal(t, "null", string(serialized))
}

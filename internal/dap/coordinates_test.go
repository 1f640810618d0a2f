/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package dap

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCoordinates(t *testing.T) {
	t.Parallel()

	c := NewCoordinatesForPlatform("linux")
	assert.Equal(t, 0, c.ClientLineToDebugger(1))
	assert.Equal(t, 1, c.DebuggerLineToClient(0))
	assert.Equal(t, 4, c.ClientColumnToDebugger(5))
	assert.Equal(t, 5, c.DebuggerColumnToClient(4))
	assert.Equal(t, "/src/readme.md", c.ClientPathToDebugger("/src/readme.md"))
}

func TestCoordinateConversionsAreInverse(t *testing.T) {
	t.Parallel()

	flags := []bool{false, true}
	for _, clientAt1 := range flags {
		for _, debuggerAt1 := range flags {
			for _, clientURI := range flags {
				for _, debuggerURI := range flags {
					name := fmt.Sprintf("client1=%v debugger1=%v clientURI=%v debuggerURI=%v", clientAt1, debuggerAt1, clientURI, debuggerURI)
					t.Run(name, func(t *testing.T) {
						c := NewCoordinatesForPlatform("linux")
						c.SetClientLinesStartAt1(clientAt1)
						c.SetClientColumnsStartAt1(clientAt1)
						c.SetDebuggerLinesStartAt1(debuggerAt1)
						c.SetDebuggerColumnsStartAt1(debuggerAt1)
						c.SetClientPathsAreURIs(clientURI)
						c.SetDebuggerPathsAreURIs(debuggerURI)

						for _, n := range []int{0, 1, 2, 17} {
							assert.Equal(t, n, c.DebuggerLineToClient(c.ClientLineToDebugger(n)))
							assert.Equal(t, n, c.ClientColumnToDebugger(c.DebuggerColumnToClient(n)))
						}

						clientPath := "/home/user/my docs/ü.md"
						if clientURI {
							clientPath = PathToURI(clientPath, "linux")
						}
						assert.Equal(t, clientPath, c.DebuggerPathToClient(c.ClientPathToDebugger(clientPath)))
					})
				}
			}
		}
	}
}

func TestPathToURI(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "file:///home/user/my%20docs/readme.md", PathToURI("/home/user/my docs/readme.md", "linux"))
	assert.Equal(t, "file:///c:/Users/me/readme.md", PathToURI(`C:\Users\me\readme.md`, "windows"))

	p, convErr := URIToPath("file:///home/user/my%20docs/readme.md", "linux")
	require.NoError(t, convErr)
	assert.Equal(t, "/home/user/my docs/readme.md", p)

	p, convErr = URIToPath("file:///c:/Users/me/readme.md", "windows")
	require.NoError(t, convErr)
	assert.Equal(t, `c:\Users\me\readme.md`, p)

	_, convErr = URIToPath("file://%zz", "linux")
	assert.Error(t, convErr)
}

func TestHandles(t *testing.T) {
	t.Parallel()

	h := NewHandles[string]()
	first := h.Create("locals")
	second := h.Create("globals")
	assert.Equal(t, DefaultHandleStart, first)
	assert.Equal(t, DefaultHandleStart+1, second)
	assert.Equal(t, "globals", h.Get(second, ""))
	assert.Equal(t, "none", h.Get(5, "none"))

	_, found := h.Lookup(first)
	assert.True(t, found)

	h.Reset()
	_, found = h.Lookup(first)
	assert.False(t, found)
	assert.Equal(t, DefaultHandleStart, h.Create("again"))

	small := NewHandlesFrom[int](1)
	assert.Equal(t, 1, small.Create(10))
}

func TestFormatPII(t *testing.T) {
	t.Parallel()

	args := map[string]string{"_file": "readme.md", "user": "alice", "_empty": ""}

	assert.Equal(t, "cannot open readme.md as {user}", FormatPII("cannot open {_file} as {user}", true, args))
	assert.Equal(t, "cannot open readme.md as alice", FormatPII("cannot open {_file} as {user}", false, args))
	assert.Equal(t, "{_missing} and {_empty}", FormatPII("{_missing} and {_empty}", true, args))
	assert.Equal(t, "no placeholders", FormatPII("no placeholders", true, nil))
}

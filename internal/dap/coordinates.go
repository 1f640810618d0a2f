/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package dap

import (
	"runtime"
	"sync"
)

// Coordinates converts line numbers, column numbers and paths between the conventions
// negotiated with the client and the conventions used by the debugger.
// By default the client counts lines and columns from 1, the debugger from 0,
// and both sides use native paths.
type Coordinates struct {
	mu sync.RWMutex

	debuggerLinesStartAt1   bool
	debuggerColumnsStartAt1 bool
	debuggerPathsAreURIs    bool

	clientLinesStartAt1   bool
	clientColumnsStartAt1 bool
	clientPathsAreURIs    bool

	// goos selects the path conventions for path/URI conversion
	goos string
}

func NewCoordinates() *Coordinates {
	return NewCoordinatesForPlatform(runtime.GOOS)
}

func NewCoordinatesForPlatform(goos string) *Coordinates {
	return &Coordinates{
		clientLinesStartAt1:   true,
		clientColumnsStartAt1: true,
		goos:                  goos,
	}
}

func (c *Coordinates) SetDebuggerLinesStartAt1(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.debuggerLinesStartAt1 = v
}

func (c *Coordinates) SetDebuggerColumnsStartAt1(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.debuggerColumnsStartAt1 = v
}

func (c *Coordinates) SetDebuggerPathsAreURIs(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.debuggerPathsAreURIs = v
}

func (c *Coordinates) SetClientLinesStartAt1(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clientLinesStartAt1 = v
}

func (c *Coordinates) SetClientColumnsStartAt1(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clientColumnsStartAt1 = v
}

func (c *Coordinates) SetClientPathsAreURIs(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clientPathsAreURIs = v
}

func (c *Coordinates) ClientLinesStartAt1() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.clientLinesStartAt1
}

func (c *Coordinates) ClientColumnsStartAt1() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.clientColumnsStartAt1
}

func (c *Coordinates) ClientLineToDebugger(line int) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return shift(line, c.clientLinesStartAt1, c.debuggerLinesStartAt1)
}

func (c *Coordinates) DebuggerLineToClient(line int) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return shift(line, c.debuggerLinesStartAt1, c.clientLinesStartAt1)
}

func (c *Coordinates) ClientColumnToDebugger(column int) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return shift(column, c.clientColumnsStartAt1, c.debuggerColumnsStartAt1)
}

func (c *Coordinates) DebuggerColumnToClient(column int) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return shift(column, c.debuggerColumnsStartAt1, c.clientColumnsStartAt1)
}

func (c *Coordinates) ClientPathToDebugger(clientPath string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return convertPath(clientPath, c.clientPathsAreURIs, c.debuggerPathsAreURIs, c.goos)
}

func (c *Coordinates) DebuggerPathToClient(debuggerPath string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return convertPath(debuggerPath, c.debuggerPathsAreURIs, c.clientPathsAreURIs, c.goos)
}

// shift converts a 0- or 1-based value between two conventions.
func shift(value int, fromStartAt1, toStartAt1 bool) int {
	switch {
	case fromStartAt1 == toStartAt1:
		return value
	case fromStartAt1:
		return value - 1
	default:
		return value + 1
	}
}

func convertPath(p string, fromURI, toURI bool, goos string) string {
	switch {
	case fromURI == toURI:
		return p
	case fromURI:
		converted, convErr := URIToPath(p, goos)
		if convErr != nil {
			return p
		}
		return converted
	default:
		return PathToURI(p, goos)
	}
}

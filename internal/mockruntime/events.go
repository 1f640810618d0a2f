/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package mockruntime

// Event is a notification from the runtime: one of StopEvent, BreakpointValidatedEvent, OutputEvent or EndEvent.
type Event interface {
	runtimeEvent()
}

type StopReason string

const (
	StopOnEntry                 StopReason = "entry"
	StopOnStep                  StopReason = "step"
	StopOnBreakpoint            StopReason = "breakpoint"
	StopOnDataBreakpoint        StopReason = "data breakpoint"
	StopOnInstructionBreakpoint StopReason = "instruction breakpoint"
	StopOnException             StopReason = "exception"
	StopOnGoto                  StopReason = "goto"
	StopOnPause                 StopReason = "pause"
)

// StopEvent reports that execution stopped.
type StopEvent struct {
	Reason StopReason

	// Exception is the name of the exception that caused an exception stop, if it has one.
	Exception string

	// Access is the access type ("read" or "write") that hit a data breakpoint.
	Access string
}

// BreakpointValidatedEvent reports a change of a breakpoint's verification state or line.
type BreakpointValidatedEvent struct {
	Breakpoint Breakpoint
}

// OutputType is the function of the mock language that produced output.
type OutputType string

const (
	OutputLog  OutputType = "log"
	OutputPrio OutputType = "prio"
	OutputOut  OutputType = "out"
	OutputErr  OutputType = "err"
)

// OutputEvent carries text produced by the program. Line and Column are 0-based.
type OutputEvent struct {
	Type   OutputType
	Text   string
	File   string
	Line   int
	Column int
}

// EndEvent reports that execution ran past the end of the program.
type EndEvent struct{}

func (StopEvent) runtimeEvent()                {}
func (BreakpointValidatedEvent) runtimeEvent() {}
func (OutputEvent) runtimeEvent()              {}
func (EndEvent) runtimeEvent()                 {}

/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package mockruntime

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	variableRegexp  = regexp.MustCompile(`(?i)\$([a-z][a-z0-9]*)(=(false|true|[0-9]+(\.[0-9]+)?|".*"|\{.*\}))?`)
	outputRegexp    = regexp.MustCompile(`(log|prio|out|err)\(([^\)]*)\)`)
	exceptionRegexp = regexp.MustCompile(`exception\((.*)\)`)
)

const exceptionWord = "exception"

// executeLine "executes" a line. Returns true if execution stopped.
func (r *Runtime) executeLine(ln int, reverse bool) bool {
	if ln < 0 || ln >= len(r.starts) {
		return false
	}

	for (reverse && r.instruction >= r.starts[ln]) || (!reverse && r.instruction < r.ends[ln]) {
		if reverse {
			r.instruction--
		} else {
			r.instruction++
		}
		if _, found := r.instructionBreakpoints[r.instruction]; found {
			r.sendEvent(StopEvent{Reason: StopOnInstructionBreakpoint})
			return true
		}
	}

	line := r.getLine(ln)

	if r.executeAssignments(line) {
		return true
	}

	for _, m := range outputRegexp.FindAllStringSubmatchIndex(line, -1) {
		r.sendEvent(OutputEvent{
			Type:   OutputType(line[m[2]:m[3]]),
			Text:   line[m[4]:m[5]],
			File:   r.sourceFile,
			Line:   ln,
			Column: m[0],
		})
	}

	if m := exceptionRegexp.FindStringSubmatch(line); m != nil {
		exception := strings.TrimSpace(m[1])
		if r.namedException != nil && *r.namedException == exception {
			r.sendEvent(StopEvent{Reason: StopOnException, Exception: exception})
			return true
		}
		if r.otherExceptions {
			r.sendEvent(StopEvent{Reason: StopOnException})
			return true
		}
	} else if strings.Contains(line, exceptionWord) && r.otherExceptions {
		r.sendEvent(StopEvent{Reason: StopOnException})
		return true
	}

	return false
}

// executeAssignments processes variable references and assignments of a line, in order.
// Returns true if a data breakpoint stopped execution.
func (r *Runtime) executeAssignments(line string) bool {
	for _, m := range variableRegexp.FindAllStringSubmatch(line, -1) {
		name := m[1]
		literal := m[3]

		var access string
		if literal != "" {
			if r.variables.has(name) {
				access = "write"
			}
			r.variables.put(NewRuntimeVariable(name, parseLiteral(literal)))
		} else if r.variables.has(name) {
			access = "read"
		}

		accessType, found := r.dataBreakpoints[name]
		if access != "" && found && strings.Contains(accessType, access) {
			r.sendEvent(StopEvent{Reason: StopOnDataBreakpoint, Access: access})
			return true
		}
	}
	return false
}

// parseLiteral converts the value of an assignment. An object literal always produces the same four fields.
func parseLiteral(literal string) any {
	switch {
	case literal == "true":
		return true
	case literal == "false":
		return false
	case literal[0] == '"':
		return literal[1 : len(literal)-1]
	case literal[0] == '{':
		return []*RuntimeVariable{
			NewRuntimeVariable("fBool", true),
			NewRuntimeVariable("fInteger", float64(123)),
			NewRuntimeVariable("fString", "hello"),
			NewRuntimeVariable("flazyInteger", float64(321)),
		}
	default:
		n, parseErr := strconv.ParseFloat(literal, 64)
		if parseErr != nil {
			// "TRUE" and other case variants of the boolean literals
			return math.NaN()
		}
		return n
	}
}

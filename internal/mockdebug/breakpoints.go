/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package mockdebug

import (
	"context"

	"github.com/google/go-dap"

	dapsession "github.com/cvet/fonline-sub001/internal/dap"
)

func (a *Adapter) onSetBreakpoints(_ context.Context, s *dapsession.Session, req *dapsession.Request, resp *dapsession.Response) {
	var args dap.SetBreakpointsArguments
	if !decodeArguments(s, req, resp, &args) {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	clientLines := args.Lines
	if len(args.Breakpoints) > 0 {
		clientLines = make([]int, 0, len(args.Breakpoints))
		for _, sbp := range args.Breakpoints {
			clientLines = append(clientLines, sbp.Line)
		}
	}

	path := a.coords.ClientPathToDebugger(args.Source.Path)
	a.runtime.ClearBreakpoints(path)

	breakpoints := make([]dapsession.Breakpoint, 0, len(clientLines))
	for _, clientLine := range clientLines {
		bp, setErr := a.runtime.SetBreakpoint(path, a.coords.ClientLineToDebugger(clientLine))
		if setErr != nil {
			a.log.V(1).Info("Breakpoint could not be verified", "Path", path, "Line", clientLine, "Error", setErr.Error())
		}
		breakpoints = append(breakpoints, dapsession.Breakpoint{
			Id:       bp.ID,
			Verified: bp.Verified,
			Line:     a.coords.DebuggerLineToClient(bp.Line),
		})
	}

	resp.Body = &dapsession.SetBreakpointsResponseBody{Breakpoints: breakpoints}
	s.SendResponse(resp)
}

func (a *Adapter) onBreakpointLocations(_ context.Context, s *dapsession.Session, req *dapsession.Request, resp *dapsession.Response) {
	var args dap.BreakpointLocationsArguments
	if !decodeArguments(s, req, resp, &args) {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	locations := []dap.BreakpointLocation{}
	if args.Source.Path != "" {
		path := a.coords.ClientPathToDebugger(args.Source.Path)
		for _, column := range a.runtime.GetBreakpoints(path, a.coords.ClientLineToDebugger(args.Line)) {
			locations = append(locations, dap.BreakpointLocation{
				Line:   args.Line,
				Column: a.coords.DebuggerColumnToClient(column),
			})
		}
	}

	resp.Body = &dap.BreakpointLocationsResponseBody{Breakpoints: locations}
	s.SendResponse(resp)
}

func (a *Adapter) onSetExceptionBreakpoints(_ context.Context, s *dapsession.Session, req *dapsession.Request, resp *dapsession.Response) {
	var args dap.SetExceptionBreakpointsArguments
	if !decodeArguments(s, req, resp, &args) {
		return
	}

	var namedException *string
	otherExceptions := false

	for _, option := range args.FilterOptions {
		switch option.FilterId {
		case namedExceptionFilter:
			// The condition of the first option names the exception
			condition := args.FilterOptions[0].Condition
			namedException = &condition
		case otherExceptionFilter:
			otherExceptions = true
		}
	}
	for _, filter := range args.Filters {
		if filter == otherExceptionFilter {
			otherExceptions = true
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.runtime.SetExceptionsFilters(namedException, otherExceptions)
	s.SendResponse(resp)
}

func (a *Adapter) onExceptionInfo(_ context.Context, s *dapsession.Session, _ *dapsession.Request, resp *dapsession.Response) {
	resp.Body = &dapsession.ExceptionInfoResponseBody{
		ExceptionId: "Exception ID",
		Description: "This is a descriptive description of the exception.",
		BreakMode:   "always",
		Details: &dapsession.ExceptionDetails{
			Message:    "Message contained in the exception.",
			TypeName:   "Short type name of the exception object",
			StackTrace: "stack frame 1\nstack frame 2",
		},
	}
	s.SendResponse(resp)
}

// onDataBreakpointInfo offers data breakpoints on variables. Globals only support write access.
func (a *Adapter) onDataBreakpointInfo(_ context.Context, s *dapsession.Session, req *dapsession.Request, resp *dapsession.Response) {
	var args dap.DataBreakpointInfoArguments
	if !decodeArguments(s, req, resp, &args) {
		return
	}

	body := &dapsession.DataBreakpointInfoResponseBody{
		Description: "cannot break on data access",
	}

	if args.VariablesReference != 0 && args.Name != "" {
		name := args.Name
		body.DataId = &name
		body.Description = name
		body.CanPersist = true

		container, _ := a.variableHandles.Lookup(args.VariablesReference)
		if container == globalsScope {
			body.AccessTypes = []string{"write"}
		} else {
			body.AccessTypes = []string{"read", "write", "readWrite"}
		}
	}

	resp.Body = body
	s.SendResponse(resp)
}

func (a *Adapter) onSetDataBreakpoints(_ context.Context, s *dapsession.Session, req *dapsession.Request, resp *dapsession.Response) {
	var args dap.SetDataBreakpointsArguments
	if !decodeArguments(s, req, resp, &args) {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.runtime.ClearAllDataBreakpoints()

	breakpoints := make([]dapsession.Breakpoint, 0, len(args.Breakpoints))
	for _, dbp := range args.Breakpoints {
		accessType := string(dbp.AccessType)
		if accessType == "" {
			accessType = "write"
		}
		breakpoints = append(breakpoints, dapsession.Breakpoint{
			Verified: a.runtime.SetDataBreakpoint(dbp.DataId, accessType),
		})
	}

	resp.Body = &dapsession.SetBreakpointsResponseBody{Breakpoints: breakpoints}
	s.SendResponse(resp)
}

func (a *Adapter) onSetInstructionBreakpoints(_ context.Context, s *dapsession.Session, req *dapsession.Request, resp *dapsession.Response) {
	var args dap.SetInstructionBreakpointsArguments
	if !decodeArguments(s, req, resp, &args) {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.runtime.ClearInstructionBreakpoints()

	breakpoints := make([]dapsession.Breakpoint, 0, len(args.Breakpoints))
	for _, ibp := range args.Breakpoints {
		address, valid := parseMemoryReference(ibp.InstructionReference)
		verified := valid && a.runtime.SetInstructionBreakpoint(address+ibp.Offset)
		breakpoints = append(breakpoints, dapsession.Breakpoint{Verified: verified})
	}

	resp.Body = &dapsession.SetBreakpointsResponseBody{Breakpoints: breakpoints}
	s.SendResponse(resp)
}

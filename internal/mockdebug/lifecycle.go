/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package mockdebug

import (
	"context"
	"fmt"

	"github.com/google/go-dap"

	dapsession "github.com/cvet/fonline-sub001/internal/dap"
	"github.com/cvet/fonline-sub001/internal/daplog"
	"github.com/cvet/fonline-sub001/pkg/pointers"
)

const (
	namedExceptionFilter = "namedException"
	otherExceptionFilter = "otherExceptions"
)

// launchArguments are the arguments of launch and attach requests.
type launchArguments struct {
	// Program is the absolute path of the program to debug.
	Program string `json:"program"`

	StopOnEntry bool `json:"stopOnEntry"`

	// Trace enables the protocol trace in the diagnostic log.
	Trace bool `json:"trace"`

	NoDebug bool `json:"noDebug"`

	// CompileError simulates a compile error: "show" and "hide" select whether it is shown to the user.
	CompileError string `json:"compileError"`

	// Watch reloads the program when it changes on disk.
	Watch bool `json:"watch"`
}

func capabilities() *dap.Capabilities {
	return &dap.Capabilities{
		SupportsConfigurationDoneRequest:   true,
		SupportsEvaluateForHovers:          true,
		SupportsStepBack:                   true,
		SupportsDataBreakpoints:            true,
		SupportsCompletionsRequest:         true,
		CompletionTriggerCharacters:        []string{".", "["},
		SupportsCancelRequest:              true,
		SupportsBreakpointLocationsRequest: true,
		SupportsStepInTargetsRequest:       true,
		SupportsExceptionFilterOptions:     true,
		ExceptionBreakpointFilters: []dap.ExceptionBreakpointsFilter{
			{
				Filter:               namedExceptionFilter,
				Label:                "Named Exception",
				Description:          "Break on named exceptions. Enter the exception's name as the Condition.",
				Default:              false,
				SupportsCondition:    true,
				ConditionDescription: "Enter the exception's name",
			},
			{
				Filter:            otherExceptionFilter,
				Label:             "Other Exceptions",
				Description:       "This is a other exception",
				Default:           true,
				SupportsCondition: false,
			},
		},
		SupportsExceptionInfoRequest:     true,
		SupportsSetVariable:              true,
		SupportsSetExpression:            true,
		SupportsDisassembleRequest:       true,
		SupportsSteppingGranularity:      true,
		SupportsInstructionBreakpoints:   true,
		SupportsReadMemoryRequest:        true,
		SupportsWriteMemoryRequest:       true,
		SupportSuspendDebuggee:           true,
		SupportTerminateDebuggee:         true,
		SupportsFunctionBreakpoints:      true,
		SupportsDelayedStackTraceLoading: true,
		SupportsLoadedSourcesRequest:     true,
		SupportsGotoTargetsRequest:       true,
	}
}

// onInitialize records the client capabilities, answers with the adapter capabilities,
// and tells the client it can start configuring the session.
func (a *Adapter) onInitialize(_ context.Context, s *dapsession.Session, req *dapsession.Request, resp *dapsession.Response) {
	var args dap.InitializeRequestArguments
	if !decodeArguments(s, req, resp, &args) {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.reportProgress = args.SupportsProgressReporting
	a.useInvalidatedEvent = args.SupportsInvalidatedEvent

	resp.Body = capabilities()
	s.SendResponse(resp)
	s.SendEvent(dapsession.NewEvent("initialized", nil))
}

func (a *Adapter) onConfigurationDone(_ context.Context, s *dapsession.Session, _ *dapsession.Request, resp *dapsession.Response) {
	s.SendResponse(resp)
	a.configurationDone.SetAndFreeze()
}

// onLaunch starts the program once the client is done configuring the session.
// Waiting happens off the request loop, so configurationDone can still be received.
func (a *Adapter) onLaunch(_ context.Context, s *dapsession.Session, req *dapsession.Request, resp *dapsession.Response) {
	var args launchArguments
	if !decodeArguments(s, req, resp, &args) {
		return
	}
	go a.launch(s, args, resp)
}

// onAttach behaves like launch; there is no separate debuggee process to attach to.
func (a *Adapter) onAttach(ctx context.Context, s *dapsession.Session, req *dapsession.Request, resp *dapsession.Response) {
	a.onLaunch(ctx, s, req, resp)
}

func (a *Adapter) launch(s *dapsession.Session, args launchArguments, resp *dapsession.Response) {
	ctx := s.Context()

	minLevel := daplog.Stop
	if args.Trace || a.forceTrace {
		minLevel = daplog.Verbose
	}
	if setupErr := a.diag.Setup(ctx, daplog.SetupOptions{MinLevel: minLevel, UseInitLogFile: true}); setupErr != nil {
		a.log.Error(setupErr, "Diagnostic logging could not be set up")
	}

	if !a.configurationDone.WaitTimeout(ctx, a.configurationDoneTimeout) {
		if ctx.Err() != nil {
			a.log.V(1).Info("Debug session ended before the program was launched", "Program", args.Program)
			return
		}
		a.log.V(1).Info("Configuration was not done in time, launching anyway", "Timeout", a.configurationDoneTimeout)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	program := a.coords.ClientPathToDebugger(args.Program)
	if startErr := a.runtime.Start(program, args.StopOnEntry, !args.NoDebug); startErr != nil {
		a.log.Error(startErr, "Program could not be started", "Program", program)
		s.SendErrorResponse(resp, ErrCodeLaunchFailed, "could not launch program: {_error}", map[string]string{
			"_error": startErr.Error(),
		}, dapsession.ErrorUser)
		return
	}

	if args.Watch {
		if watchErr := a.watchProgram(ctx, a.runtime.SourceFile()); watchErr != nil {
			a.log.Error(watchErr, "Program changes will not be picked up", "Program", program)
		}
	}

	if args.CompileError != "" {
		msg := &dapsession.ErrorMessage{
			Id:     ErrCodeCompileError,
			Format: "compile error: some fake error.",
		}
		switch args.CompileError {
		case "show":
			pointers.Make(&msg.ShowUser, true)
		case "hide":
			pointers.Make(&msg.ShowUser, false)
		}
		s.SendErrorMessage(resp, msg)
		return
	}

	s.SendResponse(resp)
}

func (a *Adapter) onDisconnect(_ context.Context, s *dapsession.Session, req *dapsession.Request, resp *dapsession.Response) {
	var args dap.DisconnectArguments
	_ = req.DecodeArguments(&args)

	a.diag.Log(fmt.Sprintf("disconnectRequest suspend: %t, terminate: %t", args.SuspendDebuggee, args.TerminateDebuggee))

	a.mu.Lock()
	a.stopWatching()
	a.mu.Unlock()

	s.SendResponse(resp)
	s.Shutdown()
}

// onCustomRequest serves toggleFormatting; other unknown commands get the default error.
func (a *Adapter) onCustomRequest(ctx context.Context, s *dapsession.Session, req *dapsession.Request, resp *dapsession.Response) {
	if req.Command != "toggleFormatting" {
		dapsession.DefaultCustomHandler(ctx, s, req, resp)
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.valuesInHex = !a.valuesInHex
	if a.useInvalidatedEvent {
		s.SendEvent(dapsession.NewEvent("invalidated", &dap.InvalidatedEventBody{
			Areas: []dap.InvalidatedAreas{"variables"},
		}))
	}
	s.SendResponse(resp)
}

/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package dap

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/go-dap"
	"go.opentelemetry.io/otel/attribute"

	"github.com/cvet/fonline-sub001/pkg/resiliency"
	"github.com/cvet/fonline-sub001/pkg/telemetry"
)

// HandlerFunc serves one request. It must send exactly one response for resp,
// either before returning or later from another goroutine.
type HandlerFunc func(ctx context.Context, s *Session, req *Request, resp *Response)

// LifecycleState is the state of a debug session as observed by the router.
type LifecycleState int

const (
	StateUninitialized LifecycleState = iota
	StateConfiguring
	StateRunning
	StateStopped
	StateTerminated
)

func (st LifecycleState) String() string {
	switch st {
	case StateUninitialized:
		return "Uninitialized"
	case StateConfiguring:
		return "Configuring"
	case StateRunning:
		return "Running"
	case StateStopped:
		return "Stopped"
	case StateTerminated:
		return "Terminated"
	default:
		return fmt.Sprintf("LifecycleState(%d)", int(st))
	}
}

// Commands served by the router. Each has a default handler answering a bare success.
var knownCommands = []string{
	"initialize", "launch", "attach", "disconnect", "terminate", "restart",
	"setBreakpoints", "setFunctionBreakpoints", "setExceptionBreakpoints", "configurationDone",
	"continue", "next", "stepIn", "stepOut", "stepBack", "reverseContinue", "restartFrame",
	"goto", "pause", "stackTrace", "scopes", "variables", "setVariable", "setExpression",
	"source", "threads", "terminateThreads", "evaluate", "stepInTargets", "gotoTargets",
	"completions", "exceptionInfo", "loadedSources", "dataBreakpointInfo", "setDataBreakpoints",
	"readMemory", "writeMemory", "disassemble", "cancel", "breakpointLocations",
	"setInstructionBreakpoints",
}

// Requests that resume execution.
var resumingCommands = map[string]bool{
	"continue": true, "next": true, "stepIn": true, "stepOut": true,
	"stepBack": true, "reverseContinue": true, "goto": true, "restartFrame": true,
}

// initializeArguments holds the initialize arguments the router itself interprets.
// Pointers distinguish absent values from false.
type initializeArguments struct {
	LinesStartAt1   *bool   `json:"linesStartAt1"`
	ColumnsStartAt1 *bool   `json:"columnsStartAt1"`
	PathFormat      *string `json:"pathFormat"`
}

// Router is the command handler table of a debug session.
// Unknown commands go to the custom request handler.
type Router struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	custom   HandlerFunc
	state    LifecycleState

	coordinates *Coordinates
}

// NewRouter creates a router in which every known command has its default handler.
func NewRouter() *Router {
	r := &Router{
		handlers:    make(map[string]HandlerFunc, len(knownCommands)),
		custom:      DefaultCustomHandler,
		coordinates: NewCoordinates(),
	}
	for _, command := range knownCommands {
		r.handlers[command] = DefaultHandler
	}
	r.handlers["initialize"] = DefaultInitializeHandler
	r.handlers["disconnect"] = DefaultDisconnectHandler
	return r
}

// Handle installs the handler for a command, replacing the previous one.
func (r *Router) Handle(command string, fn HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[command] = fn
}

// HandleCustom installs the handler for commands that have no handler of their own.
func (r *Router) HandleCustom(fn HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.custom = fn
}

// Coordinates returns the line, column and path conventions of the session.
func (r *Router) Coordinates() *Coordinates {
	return r.coordinates
}

// State returns the lifecycle state of the session.
func (r *Router) State() LifecycleState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

func (r *Router) setState(st LifecycleState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = st
}

func (r *Router) lookup(command string) HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if fn, found := r.handlers[command]; found {
		return fn
	}
	return r.custom
}

// dispatch serves one request in a telemetry span. A panicking handler is answered with error 1104.
func (r *Router) dispatch(ctx context.Context, s *Session, req *Request) {
	resp := NewResponse(req)

	_ = telemetry.CallWithTelemetryNoResult(s.tracer, "dap."+req.Command, ctx, func(spanCtx context.Context) (handlerErr error) {
		telemetry.SetAttributes(spanCtx,
			attribute.String("dap.session_id", s.id),
			attribute.String("dap.command", req.Command),
			attribute.Int("dap.seq", req.Seq),
		)

		defer func() {
			if panicVal := recover(); panicVal != nil {
				panicErr, stack := resiliency.MakePanicErrorWithStack(panicVal, s.log.WithValues("Command", req.Command))
				handlerErr = panicErr
				s.SendErrorResponse(resp, ErrCodeHandlerPanic, "{_stack}", map[string]string{
					"_exception": panicErr.Error(),
					"_stack":     stack,
				}, ErrorTelemetry)
			}
		}()

		if req.Command == "initialize" && !r.preprocessInitialize(s, req, resp) {
			return nil
		}

		r.lookup(req.Command)(spanCtx, s, req, resp)
		r.advance(req.Command)
		return nil
	})
}

// preprocessInitialize applies the client conventions announced by initialize.
// Returns false if the request has been answered with an error.
func (r *Router) preprocessInitialize(s *Session, req *Request, resp *Response) bool {
	var args initializeArguments
	if decodeErr := req.DecodeArguments(&args); decodeErr != nil {
		s.log.Info("Could not parse initialize arguments", "Error", decodeErr.Error())
	}

	if args.LinesStartAt1 != nil {
		r.coordinates.SetClientLinesStartAt1(*args.LinesStartAt1)
	}
	if args.ColumnsStartAt1 != nil {
		r.coordinates.SetClientColumnsStartAt1(*args.ColumnsStartAt1)
	}

	if args.PathFormat != nil && *args.PathFormat != "path" {
		s.SendErrorResponse(resp, ErrCodeUnsupportedPaths, "debug adapter only supports native paths", nil, ErrorTelemetry)
		return false
	}

	return true
}

func (r *Router) advance(command string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case command == "initialize" && r.state == StateUninitialized:
		r.state = StateConfiguring
	case command == "configurationDone", command == "launch", command == "attach":
		if r.state == StateConfiguring {
			r.state = StateRunning
		}
	case command == "disconnect", command == "terminate":
		r.state = StateTerminated
	case resumingCommands[command] && r.state == StateStopped:
		r.state = StateRunning
	}
}

// observeEvent tracks execution state from events sent to the client.
func (r *Router) observeEvent(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateTerminated || r.state == StateUninitialized {
		return
	}

	switch event {
	case "stopped":
		r.state = StateStopped
	case "continued":
		r.state = StateRunning
	case "terminated", "exited":
		r.state = StateTerminated
	}
}

// DefaultHandler answers a request with a bare success response.
func DefaultHandler(_ context.Context, s *Session, _ *Request, resp *Response) {
	s.SendResponse(resp)
}

// DefaultCustomHandler answers an unrecognized request with error 1014.
func DefaultCustomHandler(_ context.Context, s *Session, _ *Request, resp *Response) {
	s.SendErrorResponse(resp, ErrCodeUnrecognizedRequest, "unrecognized request", nil, ErrorTelemetry)
}

// DefaultInitializeHandler answers with the base capabilities: configurationDone only.
func DefaultInitializeHandler(_ context.Context, s *Session, _ *Request, resp *Response) {
	resp.Body = &dap.Capabilities{
		SupportsConfigurationDoneRequest: true,
	}
	s.SendResponse(resp)
}

// DefaultDisconnectHandler answers and shuts the session down.
func DefaultDisconnectHandler(_ context.Context, s *Session, _ *Request, resp *Response) {
	s.SendResponse(resp)
	s.Shutdown()
}

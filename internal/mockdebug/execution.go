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
	"github.com/cvet/fonline-sub001/pkg/pointers"
)

const (
	defaultStackLevels  = 1000
	instructionStepping = "instruction"
)

type stepArguments struct {
	ThreadId    int    `json:"threadId"`
	Granularity string `json:"granularity,omitempty"`
}

// stepInArguments differ from the go-dap type in that a missing target is distinguishable from target 0.
type stepInArguments struct {
	ThreadId    int    `json:"threadId"`
	TargetId    *int   `json:"targetId,omitempty"`
	Granularity string `json:"granularity,omitempty"`
}

func (a *Adapter) onThreads(_ context.Context, s *dapsession.Session, _ *dapsession.Request, resp *dapsession.Response) {
	resp.Body = &dap.ThreadsResponseBody{
		Threads: []dap.Thread{
			{Id: ThreadID, Name: "thread 1"},
			{Id: ThreadID + 1, Name: "thread 2"},
		},
	}
	s.SendResponse(resp)
}

func (a *Adapter) onStackTrace(_ context.Context, s *dapsession.Session, req *dapsession.Request, resp *dapsession.Response) {
	var args dap.StackTraceArguments
	if !decodeArguments(s, req, resp, &args) {
		return
	}

	levels := args.Levels
	if levels == 0 {
		levels = defaultStackLevels
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	stack := a.runtime.Stack(args.StartFrame, args.StartFrame+levels)

	frames := make([]dapsession.StackFrame, 0, len(stack.Frames))
	for _, f := range stack.Frames {
		frame := dapsession.StackFrame{
			Id:     f.Index,
			Name:   f.Name,
			Source: a.createSource(f.File),
			Line:   a.coords.DebuggerLineToClient(f.Line),
		}
		if f.Column != nil {
			frame.Column = a.coords.DebuggerColumnToClient(*f.Column)
		}
		address := a.formatAddress(f.Instruction)
		frame.Name = fmt.Sprintf("%s %s", f.Name, address)
		frame.InstructionPointerReference = address
		frames = append(frames, frame)
	}

	resp.Body = &dapsession.StackTraceResponseBody{
		StackFrames: frames,
		TotalFrames: stack.Count,
	}
	s.SendResponse(resp)
}

func (a *Adapter) onScopes(_ context.Context, s *dapsession.Session, _ *dapsession.Request, resp *dapsession.Response) {
	resp.Body = &dap.ScopesResponseBody{
		Scopes: []dap.Scope{
			{Name: "Locals", VariablesReference: a.variableHandles.Create(localsScope), Expensive: false},
			{Name: "Globals", VariablesReference: a.variableHandles.Create(globalsScope), Expensive: true},
		},
	}
	s.SendResponse(resp)
}

// The stepping requests answer right away. Where execution stops is reported by events.

func (a *Adapter) onContinue(_ context.Context, s *dapsession.Session, _ *dapsession.Request, resp *dapsession.Response) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.runtime.Continue(false)
	s.SendResponse(resp)
}

func (a *Adapter) onReverseContinue(_ context.Context, s *dapsession.Session, _ *dapsession.Request, resp *dapsession.Response) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.runtime.Continue(true)
	s.SendResponse(resp)
}

func (a *Adapter) onNext(_ context.Context, s *dapsession.Session, req *dapsession.Request, resp *dapsession.Response) {
	a.step(s, req, resp, false)
}

func (a *Adapter) onStepBack(_ context.Context, s *dapsession.Session, req *dapsession.Request, resp *dapsession.Response) {
	a.step(s, req, resp, true)
}

func (a *Adapter) step(s *dapsession.Session, req *dapsession.Request, resp *dapsession.Response, reverse bool) {
	var args stepArguments
	if !decodeArguments(s, req, resp, &args) {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.runtime.Step(args.Granularity == instructionStepping, reverse)
	s.SendResponse(resp)
}

func (a *Adapter) onStepIn(_ context.Context, s *dapsession.Session, req *dapsession.Request, resp *dapsession.Response) {
	var args stepInArguments
	if !decodeArguments(s, req, resp, &args) {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.runtime.StepIn(args.TargetId)
	s.SendResponse(resp)
}

func (a *Adapter) onStepOut(_ context.Context, s *dapsession.Session, _ *dapsession.Request, resp *dapsession.Response) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.runtime.StepOut()
	s.SendResponse(resp)
}

func (a *Adapter) onStepInTargets(_ context.Context, s *dapsession.Session, req *dapsession.Request, resp *dapsession.Response) {
	var args dap.StepInTargetsArguments
	if !decodeArguments(s, req, resp, &args) {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	targets := []dap.StepInTarget{}
	for _, t := range a.runtime.GetStepInTargets(args.FrameId) {
		targets = append(targets, dap.StepInTarget{Id: t.ID, Label: t.Label})
	}

	resp.Body = &dap.StepInTargetsResponseBody{Targets: targets}
	s.SendResponse(resp)
}

// onGotoTargets offers the start of the requested line as the only target. The target id is the client line.
func (a *Adapter) onGotoTargets(_ context.Context, s *dapsession.Session, req *dapsession.Request, resp *dapsession.Response) {
	var args dap.GotoTargetsArguments
	if !decodeArguments(s, req, resp, &args) {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	targets := []dap.GotoTarget{}
	line := a.coords.ClientLineToDebugger(args.Line)
	if line >= 0 && line < len(a.runtime.SourceLines()) {
		targets = append(targets, dap.GotoTarget{
			Id:    args.Line,
			Label: fmt.Sprintf("line %d", args.Line),
			Line:  args.Line,
		})
	}

	resp.Body = &dap.GotoTargetsResponseBody{Targets: targets}
	s.SendResponse(resp)
}

func (a *Adapter) onGoto(_ context.Context, s *dapsession.Session, req *dapsession.Request, resp *dapsession.Response) {
	var args dap.GotoArguments
	if !decodeArguments(s, req, resp, &args) {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if gotoErr := a.runtime.Goto(a.coords.ClientLineToDebugger(args.TargetId)); gotoErr != nil {
		msg := &dapsession.ErrorMessage{
			Id:        ErrCodeInvalidGotoTarget,
			Format:    "invalid goto target {_target}",
			Variables: map[string]string{"_target": fmt.Sprint(args.TargetId)},
		}
		pointers.Make(&msg.ShowUser, true)
		s.SendErrorMessage(resp, msg)
		return
	}
	s.SendResponse(resp)
}

func (a *Adapter) onPause(_ context.Context, s *dapsession.Session, _ *dapsession.Request, resp *dapsession.Response) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.runtime.Pause()
	s.SendResponse(resp)
}

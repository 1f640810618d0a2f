/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package mockdebug

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/go-dap"

	dapsession "github.com/cvet/fonline-sub001/internal/dap"
	"github.com/cvet/fonline-sub001/internal/mockruntime"
	"github.com/cvet/fonline-sub001/pkg/pointers"
)

const replContext = "repl"

var (
	newBreakpointRegexp    = regexp.MustCompile(`new +([0-9]+)`)
	deleteBreakpointRegexp = regexp.MustCompile(`del +([0-9]+)`)
	progressRegexp         = regexp.MustCompile(`progress`)
)

// onVariables lists the variables of a scope or the children of a composite variable.
// Globals take a while to compute; they are listed off the request loop and the request can be cancelled.
func (a *Adapter) onVariables(_ context.Context, s *dapsession.Session, req *dapsession.Request, resp *dapsession.Response) {
	var args dap.VariablesArguments
	if !decodeArguments(s, req, resp, &args) {
		return
	}

	container, _ := a.variableHandles.Lookup(args.VariablesReference)
	if container == globalsScope {
		seq := req.Seq
		a.cancellationTokens.Store(seq, false)

		go func() {
			globals := a.runtime.GetGlobalVariables(s.Context(), func() bool {
				cancelled, _ := a.cancellationTokens.Load(seq)
				return cancelled
			})
			a.cancellationTokens.Delete(seq)

			a.mu.Lock()
			defer a.mu.Unlock()
			a.sendVariables(s, resp, globals)
		}()
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	var vars []*mockruntime.RuntimeVariable
	switch c := container.(type) {
	case string:
		if c == localsScope {
			vars = a.runtime.GetLocalVariables()
		}
	case *mockruntime.RuntimeVariable:
		vars = c.Children()
	}
	a.sendVariables(s, resp, vars)
}

func (a *Adapter) sendVariables(s *dapsession.Session, resp *dapsession.Response, vars []*mockruntime.RuntimeVariable) {
	variables := make([]dapsession.Variable, 0, len(vars))
	for _, v := range vars {
		variables = append(variables, a.convertFromRuntime(v))
	}
	resp.Body = &dapsession.VariablesResponseBody{Variables: variables}
	s.SendResponse(resp)
}

// onSetVariable assigns a local or a field of a composite variable. Unknown variables are ignored.
func (a *Adapter) onSetVariable(_ context.Context, s *dapsession.Session, req *dapsession.Request, resp *dapsession.Response) {
	var args dap.SetVariableArguments
	if !decodeArguments(s, req, resp, &args) {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	var rv *mockruntime.RuntimeVariable
	container, _ := a.variableHandles.Lookup(args.VariablesReference)
	switch c := container.(type) {
	case string:
		if c == localsScope {
			rv = a.runtime.GetLocalVariable(args.Name)
		}
	case *mockruntime.RuntimeVariable:
		rv = c.Child(args.Name)
	}

	if rv != nil {
		rv.SetValue(convertToRuntime(args.Value))
		variable := a.convertFromRuntime(rv)
		resp.Body = &variable

		if memory := rv.Memory(); memory != nil && rv.Reference != 0 {
			s.SendEvent(dapsession.NewEvent("memory", &dap.MemoryEventBody{
				MemoryReference: strconv.Itoa(rv.Reference),
				Offset:          0,
				Count:           len(memory),
			}))
		}
	}

	s.SendResponse(resp)
}

// onEvaluate evaluates an expression: a $variable, or a literal value.
// In the REPL it also understands "new <line>" and "del <line>" to create and delete breakpoints,
// and "progress" to start a progress sequence; the reply to those is returned unless the expression
// also names a $variable.
func (a *Adapter) onEvaluate(_ context.Context, s *dapsession.Session, req *dapsession.Request, resp *dapsession.Response) {
	var args dap.EvaluateArguments
	if !decodeArguments(s, req, resp, &args) {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	var reply string
	if args.Context == replContext {
		reply = a.evaluateReplCommand(s, args.Expression)
	}

	var rv *mockruntime.RuntimeVariable
	if name, isVariable := strings.CutPrefix(args.Expression, "$"); isVariable {
		rv = a.runtime.GetLocalVariable(name)
	} else if reply == "" {
		rv = mockruntime.NewRuntimeVariable("eval", convertToRuntime(args.Expression))
	}

	if rv != nil {
		v := a.convertFromRuntime(rv)
		resp.Body = &dapsession.EvaluateResponseBody{
			Result:             v.Value,
			Type:               v.Type,
			VariablesReference: v.VariablesReference,
			PresentationHint:   v.PresentationHint,
		}
	} else {
		if reply == "" {
			reply = fmt.Sprintf("evaluate(context: '%s', '%s')", args.Context, args.Expression)
		}
		resp.Body = &dapsession.EvaluateResponseBody{Result: reply}
	}
	s.SendResponse(resp)
}

// evaluateReplCommand runs a REPL command and returns the reply, or "" if the expression is not a command.
func (a *Adapter) evaluateReplCommand(s *dapsession.Session, expression string) string {
	sourceFile := a.runtime.SourceFile()

	if m := newBreakpointRegexp.FindStringSubmatch(expression); m != nil {
		line, _ := strconv.Atoi(m[1])
		bp, setErr := a.runtime.SetBreakpoint(sourceFile, a.coords.ClientLineToDebugger(line))
		if setErr != nil {
			a.log.V(1).Info("Breakpoint could not be verified", "Path", sourceFile, "Line", line, "Error", setErr.Error())
		}
		s.SendEvent(dapsession.NewEvent("breakpoint", &dapsession.BreakpointEventBody{
			Reason: "new",
			Breakpoint: dapsession.Breakpoint{
				Id:       bp.ID,
				Verified: bp.Verified,
				Line:     a.coords.DebuggerLineToClient(bp.Line),
				Source:   a.createSource(sourceFile),
			},
		}))
		return "breakpoint created"
	}

	if m := deleteBreakpointRegexp.FindStringSubmatch(expression); m != nil {
		line, _ := strconv.Atoi(m[1])
		bp := a.runtime.ClearBreakpoint(sourceFile, a.coords.ClientLineToDebugger(line))
		if bp == nil {
			return ""
		}
		s.SendEvent(dapsession.NewEvent("breakpoint", &dapsession.BreakpointEventBody{
			Reason:     "removed",
			Breakpoint: dapsession.Breakpoint{Id: bp.ID, Verified: false},
		}))
		return "breakpoint deleted"
	}

	if progressRegexp.MatchString(expression) {
		if !a.reportProgress {
			return "frontend doesn't support progress (capability 'supportsProgressReporting' not set)"
		}
		a.startProgressSequence(s)
		return "progress started"
	}

	return ""
}

// onSetExpression assigns a $variable.
func (a *Adapter) onSetExpression(_ context.Context, s *dapsession.Session, req *dapsession.Request, resp *dapsession.Response) {
	var args dap.SetExpressionArguments
	if !decodeArguments(s, req, resp, &args) {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	lexpr := map[string]string{"lexpr": args.Expression}

	name, isVariable := strings.CutPrefix(args.Expression, "$")
	if !isVariable {
		s.SendErrorMessage(resp, userError(ErrCodeNotAssignable, "'{lexpr}' not an assignable expression", lexpr))
		return
	}

	rv := a.runtime.GetLocalVariable(name)
	if rv == nil {
		s.SendErrorMessage(resp, userError(ErrCodeVariableNotFound, "variable '{lexpr}' not found", lexpr))
		return
	}

	rv.SetValue(convertToRuntime(args.Value))
	variable := a.convertFromRuntime(rv)
	resp.Body = &variable
	s.SendResponse(resp)
}

func userError(code int, format string, variables map[string]string) *dapsession.ErrorMessage {
	msg := &dapsession.ErrorMessage{Id: code, Format: format, Variables: variables}
	pointers.Make(&msg.ShowUser, true)
	return msg
}

func (a *Adapter) onCompletions(_ context.Context, s *dapsession.Session, _ *dapsession.Request, resp *dapsession.Response) {
	resp.Body = &dap.CompletionsResponseBody{
		Targets: []dap.CompletionItem{
			{Label: "item 10", SortText: "10"},
			{Label: "item 1", SortText: "01", Detail: "detail 1"},
			{Label: "item 2", SortText: "02", Detail: "detail 2"},
			{Label: "array[]", SelectionStart: 6, SortText: "03"},
			{Label: "func(arg)", SelectionStart: 5, SelectionLength: 3, SortText: "04"},
		},
	}
	s.SendResponse(resp)
}

/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

// Package mockdebug is the debug adapter of the mock line interpreter.
// It serves DAP requests with the mockruntime engine and translates engine events into DAP events.
//
// All adapter state is guarded by one mutex. Request handlers hold it while they run, and so does
// the goroutine that translates engine events. Since engine events are queued, the response to a request
// is always written before the events produced while handling that request.
package mockdebug

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/go-dap"
	"k8s.io/utils/clock"

	dapsession "github.com/cvet/fonline-sub001/internal/dap"
	"github.com/cvet/fonline-sub001/internal/daplog"
	"github.com/cvet/fonline-sub001/internal/mockruntime"
	"github.com/cvet/fonline-sub001/pkg/concurrency"
	"github.com/cvet/fonline-sub001/pkg/syncmap"
)

const (
	// ThreadID is the only thread that executes the mock program.
	ThreadID = 1

	DefaultConfigurationDoneTimeout = time.Second
	DefaultProgressStartDelay       = 100 * time.Millisecond
	DefaultProgressStepInterval     = 500 * time.Millisecond

	firstProgressID   = 10000
	progressSteps     = 100
	sourceAdapterData = `"mock-adapter-data"`

	localsScope  = "locals"
	globalsScope = "globals"
)

// Error codes of failed adapter requests.
const (
	ErrCodeCompileError      = 1001
	ErrCodeVariableNotFound  = 1002
	ErrCodeNotAssignable     = 1003
	ErrCodeLaunchFailed      = 1004
	ErrCodeInvalidGotoTarget = 1005
	ErrCodeSourceUnavailable = 1006
)

// Config contains the parts an Adapter is composed from.
type Config struct {
	// FileAccessor reads the program. Defaults to the local file system.
	FileAccessor mockruntime.FileAccessor

	// DiagnosticLogger is the logger the session traces protocol traffic to.
	// The adapter configures its level when a program is launched.
	DiagnosticLogger *daplog.Logger

	Logger logr.Logger

	// Clock drives the progress sequence and global variable delays. Defaults to the real clock.
	Clock clock.Clock

	// GlobalVariablesDelay overrides mockruntime.DefaultGlobalVariablesDelay.
	GlobalVariablesDelay time.Duration

	// ConfigurationDoneTimeout is how long launch waits for configurationDone.
	ConfigurationDoneTimeout time.Duration

	ProgressStartDelay   time.Duration
	ProgressStepInterval time.Duration

	// WatchDebounce is the quiet period after a change of a watched program before it is reloaded.
	WatchDebounce time.Duration

	// Trace turns the protocol trace on even if the launch request does not ask for it.
	Trace bool
}

// Adapter serves the requests of one debug session.
type Adapter struct {
	mu sync.Mutex

	session *dapsession.Session
	coords  *dapsession.Coordinates
	runtime *mockruntime.Runtime
	log     logr.Logger
	diag    *daplog.Logger
	clock   clock.Clock

	fileAccessor             mockruntime.FileAccessor
	globalsDelay             time.Duration
	configurationDoneTimeout time.Duration
	progressStartDelay       time.Duration
	progressStepInterval     time.Duration
	watchDebounce            time.Duration
	forceTrace               bool

	// configurationDone is set when the client finished configuring the session
	configurationDone *concurrency.AutoResetEvent

	// variableHandles maps variable references to a scope name or a *mockruntime.RuntimeVariable
	variableHandles *dapsession.Handles[any]

	// cancellationTokens holds the cancellation flag of running requests, keyed by request seq
	cancellationTokens syncmap.Map[int, bool]

	nextProgressID      int
	progressCancellable bool
	cancelledProgressID string
	reportProgress      bool
	useInvalidatedEvent bool
	valuesInHex         bool
	addressesInHex      bool
	watcher             *programWatcher
}

// NewAdapter creates an adapter. Attach it to a session before running the session.
func NewAdapter(cfg Config) *Adapter {
	log := cfg.Logger
	if log.GetSink() == nil {
		log = logr.Discard()
	}

	clk := cfg.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}

	diag := cfg.DiagnosticLogger
	if diag == nil {
		diag = daplog.New(log)
	}

	fileAccessor := cfg.FileAccessor
	if fileAccessor == nil {
		fileAccessor = mockruntime.OSFileAccessor{}
	}

	return &Adapter{
		log:                      log,
		diag:                     diag,
		clock:                    clk,
		fileAccessor:             fileAccessor,
		globalsDelay:             cfg.GlobalVariablesDelay,
		configurationDoneTimeout: valueOrDefault(cfg.ConfigurationDoneTimeout, DefaultConfigurationDoneTimeout),
		progressStartDelay:       valueOrDefault(cfg.ProgressStartDelay, DefaultProgressStartDelay),
		progressStepInterval:     valueOrDefault(cfg.ProgressStepInterval, DefaultProgressStepInterval),
		watchDebounce:            valueOrDefault(cfg.WatchDebounce, DefaultWatchDebounce),
		forceTrace:               cfg.Trace,
		configurationDone:        concurrency.NewAutoResetEvent(false),
		variableHandles:          dapsession.NewHandles[any](),
		nextProgressID:           firstProgressID,
		progressCancellable:      true,
		addressesInHex:           true,
	}
}

func valueOrDefault(d time.Duration, dflt time.Duration) time.Duration {
	if d == 0 {
		return dflt
	}
	return d
}

// Attach installs the request handlers on the session router and starts translating engine events.
// The engine lives as long as the session.
func (a *Adapter) Attach(s *dapsession.Session) {
	a.session = s
	a.log = a.log.WithValues("SessionID", s.ID())
	a.coords = s.Router().Coordinates()
	a.coords.SetDebuggerLinesStartAt1(false)
	a.coords.SetDebuggerColumnsStartAt1(false)

	a.runtime = mockruntime.New(s.Context(), mockruntime.Config{
		FileAccessor:         a.fileAccessor,
		GlobalVariablesDelay: a.globalsDelay,
		Clock:                a.clock,
		Logger:               a.log.WithName("Runtime"),
	})

	a.registerHandlers(s.Router())

	go a.pumpEvents(s.Context())
}

func (a *Adapter) registerHandlers(r *dapsession.Router) {
	handlers := map[string]dapsession.HandlerFunc{
		"initialize":                a.onInitialize,
		"configurationDone":         a.onConfigurationDone,
		"launch":                    a.onLaunch,
		"attach":                    a.onAttach,
		"disconnect":                a.onDisconnect,
		"setBreakpoints":            a.onSetBreakpoints,
		"breakpointLocations":       a.onBreakpointLocations,
		"setExceptionBreakpoints":   a.onSetExceptionBreakpoints,
		"exceptionInfo":             a.onExceptionInfo,
		"dataBreakpointInfo":        a.onDataBreakpointInfo,
		"setDataBreakpoints":        a.onSetDataBreakpoints,
		"setInstructionBreakpoints": a.onSetInstructionBreakpoints,
		"threads":                   a.onThreads,
		"stackTrace":                a.onStackTrace,
		"scopes":                    a.onScopes,
		"variables":                 a.onVariables,
		"setVariable":               a.onSetVariable,
		"evaluate":                  a.onEvaluate,
		"setExpression":             a.onSetExpression,
		"completions":               a.onCompletions,
		"continue":                  a.onContinue,
		"reverseContinue":           a.onReverseContinue,
		"next":                      a.onNext,
		"stepBack":                  a.onStepBack,
		"stepIn":                    a.onStepIn,
		"stepOut":                   a.onStepOut,
		"stepInTargets":             a.onStepInTargets,
		"gotoTargets":               a.onGotoTargets,
		"goto":                      a.onGoto,
		"pause":                     a.onPause,
		"cancel":                    a.onCancel,
		"readMemory":                a.onReadMemory,
		"writeMemory":               a.onWriteMemory,
		"disassemble":               a.onDisassemble,
		"loadedSources":             a.onLoadedSources,
		"source":                    a.onSource,
	}
	for command, fn := range handlers {
		r.Handle(command, fn)
	}
	r.HandleCustom(a.onCustomRequest)
}

// pumpEvents translates engine events into DAP events until the engine event queue is closed.
func (a *Adapter) pumpEvents(ctx context.Context) {
	events := a.runtime.Events()
	for {
		select {
		case evt, isOpen := <-events:
			if !isOpen {
				return
			}
			a.mu.Lock()
			a.sendRuntimeEvent(evt)
			a.mu.Unlock()

		case <-ctx.Done():
			a.runtime.Close()
			return
		}
	}
}

func (a *Adapter) sendRuntimeEvent(evt mockruntime.Event) {
	switch e := evt.(type) {
	case mockruntime.StopEvent:
		reason := string(e.Reason)
		if e.Reason == mockruntime.StopOnException && e.Exception != "" {
			reason = fmt.Sprintf("exception(%s)", e.Exception)
		}
		a.session.SendEvent(dapsession.NewEvent("stopped", &dap.StoppedEventBody{
			Reason:   reason,
			ThreadId: ThreadID,
		}))

	case mockruntime.BreakpointValidatedEvent:
		a.session.SendEvent(dapsession.NewEvent("breakpoint", &dapsession.BreakpointEventBody{
			Reason: "changed",
			Breakpoint: dapsession.Breakpoint{
				Id:       e.Breakpoint.ID,
				Verified: e.Breakpoint.Verified,
			},
		}))

	case mockruntime.OutputEvent:
		a.session.SendEvent(dapsession.NewEvent("output", a.outputEventBody(e)))

	case mockruntime.EndEvent:
		a.session.SendEvent(dapsession.NewEvent("terminated", &dap.TerminatedEventBody{}))

	default:
		a.log.Info("Ignoring unknown runtime event", "Event", fmt.Sprintf("%T", evt))
	}
}

func (a *Adapter) outputEventBody(e mockruntime.OutputEvent) *dapsession.OutputEventBody {
	var category string
	switch e.Type {
	case mockruntime.OutputPrio:
		category = "important"
	case mockruntime.OutputOut:
		category = "stdout"
	case mockruntime.OutputErr:
		category = "stderr"
	default:
		category = "console"
	}

	body := &dapsession.OutputEventBody{
		Category: category,
		Output:   e.Text + "\n",
		Source:   a.createSource(e.File),
		Line:     a.coords.DebuggerLineToClient(e.Line),
		Column:   a.coords.DebuggerColumnToClient(e.Column),
	}
	switch e.Text {
	case "start", "startCollapsed", "end":
		body.Group = e.Text
		body.Output = fmt.Sprintf("group-%s\n", e.Text)
	}
	return body
}

// createSource describes a program file the way the client addresses it.
func (a *Adapter) createSource(debuggerPath string) *dapsession.Source {
	return &dapsession.Source{
		Name:        baseName(debuggerPath),
		Path:        a.coords.DebuggerPathToClient(debuggerPath),
		AdapterData: []byte(sourceAdapterData),
	}
}

// baseName returns the last element of a path that may use either separator.
func baseName(p string) string {
	return p[strings.LastIndexAny(p, `/\`)+1:]
}

// decodeArguments decodes the request arguments, answering the request with an error if they are invalid.
func decodeArguments(s *dapsession.Session, req *dapsession.Request, resp *dapsession.Response, target any) bool {
	if decodeErr := req.DecodeArguments(target); decodeErr != nil {
		resp.Success = false
		resp.Message = decodeErr.Error()
		s.SendResponse(resp)
		return false
	}
	return true
}

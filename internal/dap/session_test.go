/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package dap

import (
	"context"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/cvet/fonline-sub001/internal/daplog"
	"github.com/cvet/fonline-sub001/pkg/testutil"
)

const testTimeout = 10 * time.Second

type sessionFixture struct {
	session *Session
	client  *TestClient
	runErr  chan error
	ctx     context.Context
}

func startSession(t *testing.T, cfg SessionConfig, opts ...SessionOption) *sessionFixture {
	t.Helper()

	serverConn, clientConn := net.Pipe()
	cfg.Transport = NewStreamTransport(serverConn)
	if cfg.Logger.GetSink() == nil {
		cfg.Logger = testutil.NewLogForTesting(t.Name())
	}
	if cfg.ShutdownDelay == 0 {
		cfg.ShutdownDelay = 10 * time.Millisecond
	}

	ctx := testutil.TestContext(t, testTimeout)
	f := &sessionFixture{
		session: NewSession(cfg, opts...),
		client:  NewTestClient(NewStreamTransport(clientConn)),
		runErr:  make(chan error, 1),
		ctx:     ctx,
	}

	go func() {
		f.runErr <- f.session.Run(ctx)
	}()

	t.Cleanup(func() {
		_ = f.client.Close()
	})
	return f
}

func (f *sessionFixture) waitForRun(t *testing.T) error {
	t.Helper()
	select {
	case runErr := <-f.runErr:
		return runErr
	case <-f.ctx.Done():
		t.Fatal("session did not end")
		return nil
	}
}

func errorBody(t *testing.T, msg *ClientMessage) *ErrorMessage {
	t.Helper()
	var body ErrorResponseBody
	require.NoError(t, msg.DecodeBody(&body))
	require.NotNil(t, body.Error)
	return body.Error
}

func TestSequenceNumbersIncreaseAcrossMessageKinds(t *testing.T) {
	t.Parallel()

	router := NewRouter()
	router.Handle("threads", func(_ context.Context, s *Session, _ *Request, resp *Response) {
		s.SendEvent(NewOutputEvent("before\n", "console"))
		s.SendResponse(resp)
		s.SendEvent(NewOutputEvent("after\n", "console"))
	})
	f := startSession(t, SessionConfig{Router: router})

	_, initErr := f.client.Initialize(f.ctx)
	require.NoError(t, initErr)
	for range 5 {
		require.NoError(t, f.client.RequestOK(f.ctx, "threads", nil, nil))
	}
	_, waitErr := f.client.WaitForEvent("output", testTimeout)
	require.NoError(t, waitErr)

	require.Eventually(t, func() bool { return len(f.client.Received()) == 16 }, testTimeout, 10*time.Millisecond)
	for i, msg := range f.client.Received() {
		assert.Equal(t, i+1, msg.Seq, "message %d (%s %s%s)", i, msg.Type, msg.Command, msg.Event)
	}
}

func TestDefaultHandlers(t *testing.T) {
	t.Parallel()

	f := startSession(t, SessionConfig{})

	capabilities, initErr := f.client.Initialize(f.ctx)
	require.NoError(t, initErr)
	assert.True(t, capabilities.SupportsConfigurationDoneRequest)
	assert.False(t, capabilities.SupportsEvaluateForHovers)

	t.Run("known commands succeed", func(t *testing.T) {
		for _, command := range []string{"launch", "threads", "stackTrace", "setBreakpoints", "configurationDone"} {
			resp, reqErr := f.client.Request(f.ctx, command, nil)
			require.NoError(t, reqErr)
			assert.True(t, resp.Success, command)
			assert.Equal(t, command, resp.Command)
		}
	})

	t.Run("unknown command fails with 1014", func(t *testing.T) {
		resp, reqErr := f.client.Request(f.ctx, "fancyNewCommand", map[string]any{"x": 1})
		require.NoError(t, reqErr)
		assert.False(t, resp.Success)
		assert.Equal(t, "unrecognized request", resp.Message)
		errMsg := errorBody(t, resp)
		assert.Equal(t, ErrCodeUnrecognizedRequest, errMsg.Id)
		require.NotNil(t, errMsg.SendTelemetry)
		assert.True(t, *errMsg.SendTelemetry)
		assert.Nil(t, errMsg.ShowUser)
	})
}

func TestInitializeRejectsURIPaths(t *testing.T) {
	t.Parallel()

	f := startSession(t, SessionConfig{})

	resp, reqErr := f.client.Request(f.ctx, "initialize", map[string]any{"pathFormat": "uri"})
	require.NoError(t, reqErr)
	assert.False(t, resp.Success)
	assert.Equal(t, "debug adapter only supports native paths", resp.Message)
	assert.Equal(t, ErrCodeUnsupportedPaths, errorBody(t, resp).Id)
}

func TestInitializeAppliesClientConventions(t *testing.T) {
	t.Parallel()

	router := NewRouter()
	f := startSession(t, SessionConfig{Router: router})

	require.NoError(t, f.client.RequestOK(f.ctx, "initialize", map[string]any{
		"linesStartAt1":   false,
		"columnsStartAt1": false,
	}, nil))
	assert.False(t, router.Coordinates().ClientLinesStartAt1())
	assert.False(t, router.Coordinates().ClientColumnsStartAt1())
	assert.Equal(t, StateConfiguring, router.State())
}

func TestHandlerPanicIsReported(t *testing.T) {
	t.Parallel()

	router := NewRouter()
	router.Handle("evaluate", func(context.Context, *Session, *Request, *Response) {
		panic("evaluation exploded")
	})
	f := startSession(t, SessionConfig{Router: router})

	resp, reqErr := f.client.Request(f.ctx, "evaluate", map[string]any{"expression": "x"})
	require.NoError(t, reqErr)
	assert.False(t, resp.Success)

	errMsg := errorBody(t, resp)
	assert.Equal(t, ErrCodeHandlerPanic, errMsg.Id)
	assert.Equal(t, "{_stack}", errMsg.Format)
	assert.Contains(t, errMsg.Variables["_exception"], "evaluation exploded")
	assert.NotEmpty(t, errMsg.Variables["_stack"])
	assert.Equal(t, errMsg.Variables["_stack"], resp.Message)

	// The session keeps serving requests
	require.NoError(t, f.client.RequestOK(f.ctx, "threads", nil, nil))
}

func TestOnlyOneResponsePerRequest(t *testing.T) {
	t.Parallel()

	router := NewRouter()
	router.Handle("next", func(_ context.Context, s *Session, req *Request, resp *Response) {
		s.SendResponse(resp)
		s.SendResponse(resp)
		s.SendResponse(NewResponse(req))
	})
	f := startSession(t, SessionConfig{Router: router})

	resp, reqErr := f.client.Request(f.ctx, "next", nil)
	require.NoError(t, reqErr)
	require.True(t, resp.Success)
	require.NoError(t, f.client.RequestOK(f.ctx, "threads", nil, nil))

	count := 0
	for _, msg := range f.client.Received() {
		if msg.Type == MessageTypeResponse && msg.RequestSeq == resp.RequestSeq {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestRequestToClient(t *testing.T) {
	t.Parallel()

	type outcome struct {
		success bool
		message string
	}

	router := NewRouter()
	results := make(chan outcome, 4)
	router.Handle("launch", func(_ context.Context, s *Session, _ *Request, resp *Response) {
		s.SendRequest("runInTerminal", map[string]any{"args": []string{"echo"}}, 0, func(r *Response) {
			results <- outcome{r.Success, r.Message}
		})
		s.SendResponse(resp)
	})
	f := startSession(t, SessionConfig{Router: router})

	var sawArgs atomic.Bool
	f.client.OnReverseRequest(func(req *ClientMessage) (any, bool) {
		sawArgs.Store(strings.Contains(string(req.Arguments), "echo"))
		return map[string]any{"processId": 42}, true
	})

	require.NoError(t, f.client.RequestOK(f.ctx, "launch", nil, nil))

	select {
	case r := <-results:
		assert.True(t, r.success)
		assert.True(t, sawArgs.Load())
	case <-f.ctx.Done():
		t.Fatal("no response to runInTerminal")
	}
}

func TestRequestToClientTimesOut(t *testing.T) {
	t.Parallel()

	fakeClock := clocktesting.NewFakeClock(time.Now())
	router := NewRouter()
	var callbacks atomic.Int32
	timedOut := make(chan *Response, 1)
	router.Handle("launch", func(_ context.Context, s *Session, _ *Request, resp *Response) {
		s.SendRequest("startDebugging", nil, time.Second, func(r *Response) {
			callbacks.Add(1)
			timedOut <- r
		})
		s.SendResponse(resp)
	})
	f := startSession(t, SessionConfig{Router: router, Clock: fakeClock})

	release := make(chan struct{})
	answered := make(chan struct{})
	f.client.OnReverseRequest(func(*ClientMessage) (any, bool) {
		<-release
		close(answered)
		return nil, true
	})

	require.NoError(t, f.client.RequestOK(f.ctx, "launch", nil, nil))
	require.Eventually(t, fakeClock.HasWaiters, testTimeout, 10*time.Millisecond)

	fakeClock.Step(999 * time.Millisecond)
	assert.Empty(t, timedOut)
	fakeClock.Step(time.Millisecond)

	r := <-timedOut
	assert.False(t, r.Success)
	assert.Equal(t, "timeout", r.Message)
	assert.Equal(t, "startDebugging", r.Command)

	// A late response is ignored
	close(release)
	<-answered
	require.NoError(t, f.client.RequestOK(f.ctx, "threads", nil, nil))
	assert.Equal(t, int32(1), callbacks.Load())
}

func TestResponseBeforeDeadlineCancelsTimeout(t *testing.T) {
	t.Parallel()

	fakeClock := clocktesting.NewFakeClock(time.Now())
	router := NewRouter()
	var callbacks atomic.Int32
	answered := make(chan *Response, 2)
	router.Handle("launch", func(_ context.Context, s *Session, _ *Request, resp *Response) {
		s.SendRequest("runInTerminal", nil, time.Second, func(r *Response) {
			callbacks.Add(1)
			answered <- r
		})
		s.SendResponse(resp)
	})
	f := startSession(t, SessionConfig{Router: router, Clock: fakeClock})

	f.client.OnReverseRequest(func(*ClientMessage) (any, bool) {
		return map[string]any{"processId": 7}, true
	})

	require.NoError(t, f.client.RequestOK(f.ctx, "launch", nil, nil))

	var r *Response
	select {
	case r = <-answered:
	case <-f.ctx.Done():
		t.Fatal("no response to runInTerminal")
	}
	assert.True(t, r.Success)
	assert.Equal(t, "runInTerminal", r.Command)

	// The deadline passes after the real response was delivered
	fakeClock.Step(2 * time.Second)
	require.NoError(t, f.client.RequestOK(f.ctx, "threads", nil, nil))
	assert.False(t, fakeClock.HasWaiters(), "the timeout timer is stopped by the response")
	assert.Empty(t, answered)
	assert.Equal(t, int32(1), callbacks.Load())
}

func TestPendingRequestsFailWhenSessionEnds(t *testing.T) {
	t.Parallel()

	router := NewRouter()
	failed := make(chan *Response, 1)
	router.Handle("attach", func(_ context.Context, s *Session, _ *Request, resp *Response) {
		s.SendRequest("runInTerminal", nil, 0, func(r *Response) {
			failed <- r
		})
		s.SendResponse(resp)
	})

	var closed atomic.Bool
	f := startSession(t, SessionConfig{Router: router, OnClose: func() { closed.Store(true) }})

	release := make(chan struct{})
	defer close(release)
	f.client.OnReverseRequest(func(*ClientMessage) (any, bool) {
		<-release
		return nil, true
	})

	require.NoError(t, f.client.RequestOK(f.ctx, "attach", nil, nil))
	require.NoError(t, f.client.Close())

	require.NoError(t, f.waitForRun(t))
	assert.True(t, closed.Load())

	r := <-failed
	assert.False(t, r.Success)
	assert.Equal(t, "session closed", r.Message)
}

func TestMalformedMessageDoesNotEndSession(t *testing.T) {
	t.Parallel()

	serverConn, clientConn := net.Pipe()
	var errs []error
	var errsLock sync.Mutex
	session := NewSession(SessionConfig{
		Transport: NewStreamTransport(serverConn),
		Logger:    logr.Discard(),
		OnError: func(err error) {
			errsLock.Lock()
			defer errsLock.Unlock()
			errs = append(errs, err)
		},
	})
	ctx := testutil.TestContext(t, testTimeout)
	go func() { _ = session.Run(ctx) }()

	_, writeErr := clientConn.Write([]byte("Content-Length: 4\r\n\r\n{bad"))
	require.NoError(t, writeErr)

	client := NewTestClient(NewStreamTransport(clientConn))
	defer client.Close()

	_, initErr := client.Initialize(ctx)
	require.NoError(t, initErr)

	errsLock.Lock()
	defer errsLock.Unlock()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "error handling data")
}

func TestDisconnectEndsSession(t *testing.T) {
	t.Parallel()

	exited := make(chan struct{})
	f := startSession(t, SessionConfig{OnExit: func() { close(exited) }})

	_, initErr := f.client.Initialize(f.ctx)
	require.NoError(t, initErr)
	require.NoError(t, f.client.Disconnect(f.ctx, false))

	require.NoError(t, f.client.WaitForClose(testTimeout))
	select {
	case <-exited:
	case <-f.ctx.Done():
		t.Fatal("exit hook was not invoked")
	}
	require.NoError(t, f.waitForRun(t))
}

func TestServerModeSessionDoesNotExit(t *testing.T) {
	t.Parallel()

	var exited atomic.Bool
	f := startSession(t, SessionConfig{ServerMode: true, OnExit: func() { exited.Store(true) }})

	require.NoError(t, f.client.Disconnect(f.ctx, false))
	require.NoError(t, f.client.WaitForClose(testTimeout))
	require.NoError(t, f.waitForRun(t))
	assert.False(t, exited.Load())
}

func TestLoggingTracesTraffic(t *testing.T) {
	t.Parallel()

	diag := daplog.New(logr.Discard())
	router := NewRouter()
	router.Handle("evaluate", func(_ context.Context, s *Session, _ *Request, resp *Response) {
		s.SendEvent(NewEvent("output", &OutputEventBody{
			Category: "stdout",
			Output:   "secret",
			Data:     map[string]any{"doNotLogOutput": true, "other": 1},
		}))
		s.SendResponse(resp)
	})
	f := startSession(t, SessionConfig{Router: router}, WithLogging(diag, ""))

	// Traffic before setup is queued
	_, initErr := f.client.Initialize(f.ctx)
	require.NoError(t, initErr)
	require.NoError(t, diag.Setup(f.ctx, daplog.SetupOptions{MinLevel: daplog.Verbose}))

	require.NoError(t, f.client.RequestOK(f.ctx, "evaluate", map[string]any{"expression": "1"}, nil))
	require.NoError(t, f.client.RequestOK(f.ctx, "threads", nil, nil))

	var logged []string
	var secretBody OutputEventBody
	for _, msg := range f.client.Received() {
		if msg.Event != "output" {
			continue
		}
		var body OutputEventBody
		require.NoError(t, msg.DecodeBody(&body))
		if body.Output == "secret" {
			secretBody = body
			continue
		}
		logged = append(logged, body.Output)
	}

	allLogged := strings.Join(logged, "")
	assert.Contains(t, allLogged, "From client: initialize(")
	assert.Contains(t, allLogged, `From client: evaluate({"expression":"1"})`)
	assert.Contains(t, allLogged, "From client: threads(undefined)")
	assert.Contains(t, allLogged, "<output not logged>")
	assert.NotContains(t, allLogged, "secret")

	assert.Equal(t, "secret", secretBody.Output)
	assert.NotContains(t, secretBody.Data, "doNotLogOutput")
	assert.Contains(t, secretBody.Data, "other")
}

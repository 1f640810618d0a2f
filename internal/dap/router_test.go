/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package dap

import (
	"context"
	"testing"

	"github.com/google/go-dap"
	"github.com/stretchr/testify/assert"
)

func TestLifecycleStateTransitions(t *testing.T) {
	t.Parallel()

	r := NewRouter()
	assert.Equal(t, StateUninitialized, r.State())

	// Events before initialize do not change the state
	r.observeEvent("stopped")
	assert.Equal(t, StateUninitialized, r.State())

	r.advance("initialize")
	assert.Equal(t, StateConfiguring, r.State())

	r.advance("setBreakpoints")
	assert.Equal(t, StateConfiguring, r.State())

	r.advance("configurationDone")
	assert.Equal(t, StateRunning, r.State())

	r.observeEvent("stopped")
	assert.Equal(t, StateStopped, r.State())

	r.advance("stackTrace")
	assert.Equal(t, StateStopped, r.State())

	r.advance("next")
	assert.Equal(t, StateRunning, r.State())

	r.observeEvent("stopped")
	r.observeEvent("continued")
	assert.Equal(t, StateRunning, r.State())

	r.observeEvent("terminated")
	assert.Equal(t, StateTerminated, r.State())

	r.observeEvent("stopped")
	assert.Equal(t, StateTerminated, r.State())
}

func TestDisconnectTerminates(t *testing.T) {
	t.Parallel()

	r := NewRouter()
	r.advance("initialize")
	r.advance("launch")
	assert.Equal(t, StateRunning, r.State())
	r.advance("disconnect")
	assert.Equal(t, StateTerminated, r.State())
	assert.Equal(t, "Terminated", r.State().String())
}

func TestHandlerLookup(t *testing.T) {
	t.Parallel()

	r := NewRouter()
	for _, command := range knownCommands {
		assert.NotNil(t, r.lookup(command), command)
	}

	called := ""
	r.HandleCustom(func(_ context.Context, _ *Session, req *Request, _ *Response) {
		called = req.Command
	})
	r.lookup("custom")(context.Background(), nil, &Request{Request: dap.Request{Command: "custom"}}, nil)
	assert.Equal(t, "custom", called)
}

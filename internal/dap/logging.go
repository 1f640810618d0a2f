/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package dap

import (
	"encoding/json"
	"fmt"
	"maps"
	"time"

	"github.com/cvet/fonline-sub001/internal/daplog"
)

const (
	doNotLogOutputKey = "doNotLogOutput"
	outputNotLogged   = "<output not logged>"
)

// NewLogOutputEvent creates the output event that carries a diagnostic log message to the client.
func NewLogOutputEvent(msg string, level daplog.Level) *Event {
	var category string
	switch level {
	case daplog.Error:
		category = "stderr"
	case daplog.Warn:
		category = "console"
	default:
		category = "stdout"
	}

	evt := NewOutputEvent(msg, category)
	evt.logOutput = true
	return evt
}

// loggingDecorator traces the protocol traffic of a session to the diagnostic logger.
type loggingDecorator struct {
	logger *daplog.Logger
}

func newLoggingDecorator(logger *daplog.Logger) *loggingDecorator {
	return &loggingDecorator{logger: logger}
}

func (d *loggingDecorator) incomingRequest(req *Request) {
	d.logger.Verbose(fmt.Sprintf("From client: %s(%s)", req.Command, argumentsJSON(req.Arguments)))
}

func (d *loggingDecorator) outgoingRequest(req *Request, timeout time.Duration) {
	command, _ := json.Marshal(req.Command)
	d.logger.Verbose(fmt.Sprintf("To client: %s(%s), timeout: %d", command, argumentsJSON(req.Arguments), timeout.Milliseconds()))
}

func (d *loggingDecorator) outgoingResponse(resp *Response) {
	d.logger.Verbose("To client: " + toJSON(resp))
}

// outgoingEvent logs an event about to be sent. Log output events are not logged again.
// Output flagged with data.doNotLogOutput loses the flag and is logged without its text.
func (d *loggingDecorator) outgoingEvent(evt *Event) {
	if evt.logOutput {
		return
	}

	var toLog any = evt
	if body, isOutput := evt.Body.(*OutputEventBody); isOutput && body != nil && isTruthy(body.Data[doNotLogOutputKey]) {
		delete(body.Data, doNotLogOutputKey)

		redactedBody := *body
		redactedBody.Data = maps.Clone(body.Data)
		redactedBody.Output = outputNotLogged
		redacted := *evt
		redacted.Body = &redactedBody
		toLog = &redacted
	}

	d.logger.Verbose("To client: " + toJSON(toLog))
}

func (d *loggingDecorator) sessionError(err error) {
	d.logger.Error(err.Error())
}

func argumentsJSON(args json.RawMessage) string {
	if len(args) == 0 {
		return "undefined"
	}
	return string(args)
}

func toJSON(v any) string {
	data, marshalErr := json.Marshal(v)
	if marshalErr != nil {
		return fmt.Sprintf("<%s>", marshalErr.Error())
	}
	return string(data)
}

func isTruthy(v any) bool {
	switch tv := v.(type) {
	case nil:
		return false
	case bool:
		return tv
	case string:
		return tv != ""
	case float64:
		return tv != 0
	case int:
		return tv != 0
	default:
		return true
	}
}

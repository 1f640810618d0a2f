/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package mockdebug

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/go-dap"

	dapsession "github.com/cvet/fonline-sub001/internal/dap"
)

// startProgressSequence starts reporting a fake long running operation.
// Every other operation can be cancelled by the client. Must be called with the adapter lock held.
func (a *Adapter) startProgressSequence(s *dapsession.Session) {
	id := strconv.Itoa(a.nextProgressID)
	a.nextProgressID++

	cancellable := a.progressCancellable
	a.progressCancellable = !a.progressCancellable

	go a.runProgressSequence(s, id, cancellable)
}

func (a *Adapter) runProgressSequence(s *dapsession.Session, id string, cancellable bool) {
	ctx := s.Context()
	log := a.log.WithValues("ProgressID", id)

	if !a.sleep(ctx, a.progressStartDelay) {
		return
	}

	title := "Long running operation"
	if cancellable {
		title = "Cancellable operation"
	}

	a.sendLocked(s,
		dapsession.NewEvent("progressStart", &dap.ProgressStartEventBody{
			ProgressId:  id,
			Title:       title,
			Cancellable: cancellable,
		}),
		dapsession.NewOutputEvent(fmt.Sprintf("start progress: %s\n", id), "console"),
	)
	log.V(1).Info("Progress started")

	endMessage := "progress ended"
	for i := 0; i < progressSteps; i++ {
		if !a.sleep(ctx, a.progressStepInterval) {
			return
		}

		a.mu.Lock()
		if a.cancelledProgressID == id {
			a.mu.Unlock()
			endMessage = "progress cancelled"
			a.sendLocked(s, dapsession.NewOutputEvent(fmt.Sprintf("cancel progress: %s\n", id), "console"))
			log.V(1).Info("Progress cancelled")
			break
		}
		s.SendEvent(dapsession.NewEvent("progressUpdate", &dap.ProgressUpdateEventBody{
			ProgressId: id,
			Message:    fmt.Sprintf("progress: %d", i),
		}))
		a.mu.Unlock()
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	s.SendEvent(dapsession.NewEvent("progressEnd", &dap.ProgressEndEventBody{
		ProgressId: id,
		Message:    endMessage,
	}))
	s.SendEvent(dapsession.NewOutputEvent(fmt.Sprintf("end progress: %s\n", id), "console"))
	if a.cancelledProgressID == id {
		a.cancelledProgressID = ""
	}
}

// sleep waits on the adapter clock. Returns false if the session ended first.
func (a *Adapter) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-a.clock.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}

func (a *Adapter) sendLocked(s *dapsession.Session, events ...*dapsession.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, evt := range events {
		s.SendEvent(evt)
	}
}

// onCancel flags a running request or progress sequence as cancelled.
// The cancelled request still answers, with what it computed so far.
func (a *Adapter) onCancel(_ context.Context, s *dapsession.Session, req *dapsession.Request, resp *dapsession.Response) {
	var args dap.CancelArguments
	if !decodeArguments(s, req, resp, &args) {
		return
	}

	if args.RequestId != 0 {
		a.cancellationTokens.Store(args.RequestId, true)
	}
	if args.ProgressId != "" {
		a.mu.Lock()
		a.cancelledProgressID = args.ProgressId
		a.mu.Unlock()
	}

	s.SendResponse(resp)
}

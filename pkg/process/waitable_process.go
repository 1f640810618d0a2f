/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package process

import (
	"context"
	"errors"
	"sync"
	"time"
)

const (
	defaultWaitPollInterval = time.Second * 2
)

// WaitableProcess waits for a process that is not a child of the current process, by polling.
type WaitableProcess struct {
	WaitPollInterval time.Duration
	handle           ProcessHandle
	err              error
	waitChan         chan struct{}
	waitLock         sync.Mutex
}

func FindWaitableProcess(handle ProcessHandle) (*WaitableProcess, error) {
	proc, err := findPsProcess(handle)
	if err != nil {
		return nil, err
	}

	if handle.IdentityTime.IsZero() {
		handle.IdentityTime = identityTime(proc)
	}

	return &WaitableProcess{
		WaitPollInterval: defaultWaitPollInterval,
		handle:           handle,
	}, nil
}

func (p *WaitableProcess) Handle() ProcessHandle {
	return p.handle
}

func (p *WaitableProcess) pollingWait(ctx context.Context) {
	// Only setup a single wait loop per-process instance
	p.waitLock.Lock()
	defer p.waitLock.Unlock()

	if p.waitChan != nil {
		return
	}

	p.waitChan = make(chan struct{})
	go func() {
		defer close(p.waitChan)

		timer := time.NewTimer(p.WaitPollInterval)
		defer timer.Stop()

		for {
			select {
			case <-timer.C:
				if pollErr := FindProcess(p.handle); errors.Is(pollErr, ErrorProcessNotFound) {
					p.err = nil
					return
				}
				timer.Reset(p.WaitPollInterval)

			case <-ctx.Done():
				p.err = ctx.Err()
				return
			}
		}
	}()
}

// Wait blocks until the process exits or the context is cancelled.
func (p *WaitableProcess) Wait(ctx context.Context) error {
	p.pollingWait(ctx)

	select {
	case <-p.waitChan:
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

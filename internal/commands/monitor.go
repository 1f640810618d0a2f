/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/spf13/pflag"

	"github.com/cvet/fonline-sub001/pkg/process"
)

const (
	monitorFlagName         = "monitor"
	monitorIntervalFlagName = "monitor-interval"
)

func addMonitorFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.Int64VarP(&cfg.MonitorPid, monitorFlagName, "m", int64(process.UnknownPID), "If present, tells mockdap to monitor a given process ID (PID) and gracefully shutdown if the monitored process exits for any reason.")
	fs.Uint8VarP(&cfg.MonitorInterval, monitorIntervalFlagName, "i", 0, "If present, specifies the time in seconds between checks for the monitor PID.")
}

// MonitorPid returns a context that is cancelled when the process with the given PID exits.
func MonitorPid(ctx context.Context, pid int64, pollInterval uint8, log logr.Logger) (context.Context, context.CancelFunc, error) {
	if pid == int64(process.UnknownPID) {
		return ctx, func() {}, fmt.Errorf("no PID to monitor")
	}

	if pid < 0 {
		return ctx, func() {}, fmt.Errorf("invalid PID to monitor: %d", pid)
	}
	monitorPid := process.Pid_t(pid)

	monitorProc, err := process.FindWaitableProcess(process.NewProcessHandle(monitorPid, time.Time{}))
	if err != nil {
		log.Error(err, "Error finding process", "PID", monitorPid)
		return ctx, func() {}, err
	}

	if pollInterval > 0 {
		monitorProc.WaitPollInterval = time.Second * time.Duration(pollInterval)
	}

	monitorCtx, monitorCtxCancel := context.WithCancel(ctx)
	go func() {
		defer monitorCtxCancel()
		if waitErr := monitorProc.Wait(monitorCtx); waitErr != nil {
			if errors.Is(waitErr, context.Canceled) {
				log.V(1).Info("Monitoring cancelled by context", "PID", monitorPid)
			} else {
				log.Error(waitErr, "Error waiting for process", "PID", monitorPid)
			}
		} else {
			log.Info("Monitored process exited, shutting down", "PID", monitorPid)
		}
	}()

	return monitorCtx, monitorCtxCancel, nil
}

/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package process

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	ps "github.com/shirou/gopsutil/v4/process"
)

type Pid_t int64

const (
	// Unknown PID code is used when there is no process to monitor.
	UnknownPID Pid_t = -1

	// Creation times reported by the OS are rounded differently depending on how they are queried.
	IdentityTimeMaximumDifference = 10 * time.Millisecond
)

// Essentially the same as ps.ErrorProcessNotRunning, but we do not want to
// expose the ps package outside of this package.
var ErrorProcessNotFound = errors.New("process does not exist")

// ProcessHandle is a reference to a process.
// The IdentityTime distinguishes between different instances of processes with the same PID after PID reuse.
// A zero IdentityTime matches any process with the PID.
//
// ProcessHandle is a value type and is safe to use as a map key.
type ProcessHandle struct {
	Pid          Pid_t
	IdentityTime time.Time
}

func NewProcessHandle(pid Pid_t, identityTime time.Time) ProcessHandle {
	return ProcessHandle{
		Pid:          pid,
		IdentityTime: identityTime,
	}
}

// This returns the handle of the current process.
func This() (ProcessHandle, error) {
	return HandleFor(Pid_t(os.Getpid()))
}

// HandleFor returns a handle for a running process, capturing its identity time.
func HandleFor(pid Pid_t) (ProcessHandle, error) {
	proc, err := findPsProcess(ProcessHandle{Pid: pid})
	if err != nil {
		return ProcessHandle{Pid: UnknownPID}, err
	}
	return NewProcessHandle(pid, identityTime(proc)), nil
}

// FindProcess checks that the process referenced by the handle is still running.
func FindProcess(handle ProcessHandle) error {
	_, err := findPsProcess(handle)
	return err
}

func findPsProcess(handle ProcessHandle) (*ps.Process, error) {
	osPid, err := PidT_ToInt32(handle.Pid)
	if err != nil {
		return nil, err
	}

	proc, procErr := ps.NewProcess(osPid)
	if procErr != nil {
		if errors.Is(procErr, ps.ErrorProcessNotRunning) {
			return nil, fmt.Errorf("process with pid %d does not exist: %w", handle.Pid, ErrorProcessNotFound)
		}
		return nil, procErr
	}

	if !handle.IdentityTime.IsZero() {
		actual := identityTime(proc)
		if !within(handle.IdentityTime, actual, IdentityTimeMaximumDifference) {
			return nil, fmt.Errorf(
				"process start time mismatch, pid might have been reused: pid %d, expected start time %s, actual start time %s: %w",
				handle.Pid,
				handle.IdentityTime.Format(time.RFC3339Nano),
				actual.Format(time.RFC3339Nano),
				ErrorProcessNotFound,
			)
		}
	}

	return proc, nil
}

func identityTime(proc *ps.Process) time.Time {
	createTimeMillis, err := proc.CreateTime()
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(createTimeMillis)
}

func within(a, b time.Time, maxDiff time.Duration) bool {
	diff := a.Sub(b)
	return diff <= maxDiff && diff >= -maxDiff
}

func PidT_ToInt32(val Pid_t) (int32, error) {
	if val < 0 || val > math.MaxInt32 {
		return 0, fmt.Errorf("value %d is out of range of valid process ID values", val)
	}
	return int32(val), nil
}

func StringToPidT(val string) (Pid_t, error) {
	parsed, parseErr := strconv.ParseInt(val, 10, 64)
	if parseErr != nil {
		return UnknownPID, parseErr
	}
	if parsed < 0 || parsed > math.MaxInt32 {
		return UnknownPID, fmt.Errorf("value %d is out of range of valid process ID values", parsed)
	}
	return Pid_t(parsed), nil
}

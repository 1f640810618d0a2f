/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

// Package daplog implements the diagnostic log of a debug adapter session.
// Messages are written to an optional log file, to the process console and back
// to the client as output events, subject to a minimum level configured at launch time.
// Messages logged before the logger is configured are queued and flushed in order.
package daplog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-logr/logr"

	"github.com/cvet/fonline-sub001/pkg/resiliency"
)

type Level int

const (
	Verbose Level = iota
	Log
	Warn
	Error
	Stop
)

func (l Level) String() string {
	switch l {
	case Verbose:
		return "Verbose"
	case Log:
		return "Log"
	case Warn:
		return "Warn"
	case Error:
		return "Error"
	case Stop:
		return "Stop"
	default:
		return fmt.Sprintf("Level(%d)", int(l))
	}
}

type State int

const (
	// Constructed; messages are queued.
	Uninitialized State = iota
	// Init() was called; messages are still queued until Setup().
	Buffering
	// Setup() was called; the queue has been flushed and messages are written out immediately.
	Active
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "Uninitialized"
	case Buffering:
		return "Buffering"
	case Active:
		return "Active"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

const (
	maxClientMessageLength = 1500
	truncationMarker       = "[...]"
	errorFilePrefix        = "[Error] "
	timestampLayout        = "15:04:05.000"

	logFileCreateTimeout = 2 * time.Second
)

var ErrRelativeLogFilePath = errors.New("log file path must be an absolute path")

// Callback receives every message that passes the minimum level, ready to be sent to the client.
type Callback func(msg string, level Level)

// SetupOptions configure an initialized logger.
type SetupOptions struct {
	// MinLevel is the minimum level of messages sent to the client. Stop suppresses all output.
	MinLevel Level

	// LogFilePath is the absolute path of the log file. Empty means no file,
	// unless UseInitLogFile selects the path passed to Init().
	LogFilePath    string
	UseInitLogFile bool

	PrependTimestamp bool
}

type pendingMessage struct {
	msg   string
	level Level
}

// Logger is the diagnostic logger of a debug adapter session. It is safe for concurrent use.
type Logger struct {
	lock  sync.Mutex
	state State
	queue []pendingMessage

	// console receives Error and Warn messages when console logging is enabled
	console         logr.Logger
	logToConsole    bool
	callback        Callback
	logFilePathInit string

	minLevel         Level
	prependTimestamp bool
	file             *os.File

	now func() time.Time
}

// New creates an uninitialized logger. console is the process logger used in console mode.
func New(console logr.Logger) *Logger {
	if console.GetSink() == nil {
		console = logr.Discard()
	}
	return &Logger{
		console:  console,
		minLevel: Warn,
		now:      time.Now,
	}
}

func (l *Logger) State() State {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.state
}

// Init connects the logger to a session. Messages keep being queued until Setup is called.
// Calling Init again starts a new buffering phase with the new callback.
func (l *Logger) Init(callback Callback, logFilePath string, logToConsole bool) {
	l.lock.Lock()
	defer l.lock.Unlock()

	l.callback = callback
	l.logFilePathInit = logFilePath
	l.logToConsole = logToConsole
	l.state = Buffering
}

// Setup configures the output and flushes queued messages in order.
// It has no effect on a logger that was never initialized.
func (l *Logger) Setup(ctx context.Context, opts SetupOptions) error {
	l.lock.Lock()

	if l.state == Uninitialized {
		l.lock.Unlock()
		return nil
	}

	l.minLevel = opts.MinLevel
	l.prependTimestamp = opts.PrependTimestamp

	logFilePath := opts.LogFilePath
	if logFilePath == "" && opts.UseInitLogFile {
		logFilePath = l.logFilePathInit
	}

	var setupErr error
	if logFilePath != "" {
		setupErr = l.openLogFile(ctx, logFilePath)
	}

	queue := l.queue
	l.queue = nil
	l.state = Active
	var deliveries []pendingMessage
	for _, pm := range queue {
		deliveries = l.writeLocked(deliveries, pm.msg, pm.level)
	}
	callback := l.callback
	l.lock.Unlock()

	deliver(callback, deliveries)
	return setupErr
}

func (l *Logger) openLogFile(ctx context.Context, logFilePath string) error {
	if !filepath.IsAbs(logFilePath) {
		l.console.Error(ErrRelativeLogFilePath, "Diagnostic log file not created", "Path", logFilePath)
		return fmt.Errorf("%w: %s", ErrRelativeLogFilePath, logFilePath)
	}

	if l.file != nil {
		_ = l.file.Close()
		l.file = nil
	}

	if mkdirErr := os.MkdirAll(filepath.Dir(logFilePath), 0755); mkdirErr != nil {
		return fmt.Errorf("failed to create folder for log file '%s': %w", logFilePath, mkdirErr)
	}

	createCtx, cancel := context.WithTimeout(ctx, logFileCreateTimeout)
	defer cancel()

	b := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(20*time.Millisecond),
		backoff.WithMaxInterval(200*time.Millisecond),
	)
	file, createErr := resiliency.RetryGet(createCtx, b, func() (*os.File, error) {
		return os.OpenFile(logFilePath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	})
	if createErr != nil {
		return fmt.Errorf("failed to create log file '%s': %w", logFilePath, createErr)
	}

	l.file = file
	return nil
}

// Log writes a message at Log level. A newline is appended.
func (l *Logger) Log(msg string) {
	l.Write(msg+"\n", Log)
}

// Verbose writes a message at Verbose level. A newline is appended.
func (l *Logger) Verbose(msg string) {
	l.Write(msg+"\n", Verbose)
}

// Warn writes a message at Warn level. A newline is appended.
func (l *Logger) Warn(msg string) {
	l.Write(msg+"\n", Warn)
}

// Error writes a message at Error level. A newline is appended.
func (l *Logger) Error(msg string) {
	l.Write(msg+"\n", Error)
}

// Write writes a message verbatim at the given level.
func (l *Logger) Write(msg string, level Level) {
	l.lock.Lock()

	if l.state != Active {
		l.queue = append(l.queue, pendingMessage{msg: msg, level: level})
		l.lock.Unlock()
		return
	}

	deliveries := l.writeLocked(nil, msg, level)
	callback := l.callback
	l.lock.Unlock()

	deliver(callback, deliveries)
}

// writeLocked writes a message to the console and the log file.
// Messages destined for the client are appended to deliveries; the callback is
// invoked outside of the lock, so it may log through the same logger.
func (l *Logger) writeLocked(deliveries []pendingMessage, msg string, level Level) []pendingMessage {
	if l.minLevel == Stop {
		return deliveries
	}

	if level >= l.minLevel && l.callback != nil {
		deliveries = append(deliveries, pendingMessage{msg: truncateForClient(msg), level: level})
	}

	if l.logToConsole {
		switch level {
		case Error:
			l.console.Error(nil, strings.TrimSuffix(msg, "\n"))
		case Warn:
			l.console.Info(strings.TrimSuffix(msg, "\n"))
		}
	}

	if l.file == nil {
		return deliveries
	}

	if level == Error {
		msg = errorFilePrefix + msg
	}
	if l.prependTimestamp {
		msg = "[" + l.now().UTC().Format(timestampLayout) + " UTC] " + msg
	}
	_, _ = l.file.WriteString(msg)
	return deliveries
}

func deliver(callback Callback, deliveries []pendingMessage) {
	for _, d := range deliveries {
		callback(d.msg, d.level)
	}
}

func truncateForClient(msg string) string {
	if utf8.RuneCountInString(msg) <= maxClientMessageLength {
		return msg
	}

	endsInNewline := strings.HasSuffix(msg, "\n")
	runes := []rune(msg)
	truncated := string(runes[:maxClientMessageLength]) + truncationMarker
	if endsInNewline {
		truncated += "\n"
	}
	return truncated
}

// Dispose closes the log file, if any. The logger keeps accepting messages.
func (l *Logger) Dispose() error {
	l.lock.Lock()
	defer l.lock.Unlock()

	if l.file == nil {
		return nil
	}

	closeErr := l.file.Close()
	l.file = nil
	if closeErr != nil {
		return fmt.Errorf("failed to close log file: %w", closeErr)
	}
	return nil
}

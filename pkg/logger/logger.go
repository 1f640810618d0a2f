/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cvet/fonline-sub001/pkg/resiliency"
)

const (
	MOCKDAP_DIAGNOSTICS_LOG_FOLDER = "MOCKDAP_DIAGNOSTICS_LOG_FOLDER" // Folder to write diagnostics logs to (defaults to a temp folder)
	MOCKDAP_DIAGNOSTICS_LOG_LEVEL  = "MOCKDAP_DIAGNOSTICS_LOG_LEVEL"  // Log level to include in diagnostics logs (defaults to none)
	MOCKDAP_LOG_SESSION_ID         = "MOCKDAP_LOG_SESSION_ID"         // Session ID to include in log names

	verbosityFlagName      = "verbosity"
	verbosityFlagShortName = "v"

	permissionOnlyOwnerReadWrite         fs.FileMode = 0600
	permissionOnlyOwnerReadWriteTraverse fs.FileMode = 0700
)

var (
	defaultLogPath = filepath.Join(os.TempDir(), "mockdap", "logs")
	sessionId      string
	startTime      time.Time
)

type Logger struct {
	logr.Logger
	name        string
	atomicLevel zap.AtomicLevel
	flush       func()
}

// New creates the process logger. Console output always goes to stderr,
// because stdout may carry the debug adapter protocol stream.
func New(name string) *Logger {
	return NewWithWriter(name, os.Stderr)
}

// NewWithWriter creates a logger that writes human readable output to the given writer.
func NewWithWriter(name string, w io.Writer) *Logger {
	// Format console output to be human readable
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	// Honor Windows line endings for logs if appropriate
	if runtime.GOOS == "windows" {
		encoderConfig.LineEnding = "\r\n"
	}
	consoleEncoder := zapcore.NewConsoleEncoder(encoderConfig)

	consoleAtomicLevel := zap.NewAtomicLevelAt(zapcore.InfoLevel)

	cores := []zapcore.Core{
		zapcore.NewCore(consoleEncoder, zapcore.Lock(zapcore.AddSync(w)), consoleAtomicLevel),
	}

	var diagnosticsLogErr error
	if logCore, err := getDiagnosticsLogCore(name, encoderConfig); err != nil {
		// Ignore the error if diagnostics log isn't enabled
		if !errors.Is(err, errDiagnosticsLogNotEnabled) {
			diagnosticsLogErr = err
		}
	} else {
		cores = append(cores, logCore)
	}

	zapLogger := zap.New(zapcore.NewTee(cores...))

	logger := zapr.NewLogger(zapLogger).WithName(name)

	if diagnosticsLogErr != nil {
		logger.Error(diagnosticsLogErr, "failed to enable diagnostics log output")
	}

	return &Logger{
		Logger:      logger,
		name:        name,
		atomicLevel: consoleAtomicLevel,
		flush: func() {
			_ = zapLogger.Sync()
		},
	}
}

func (l *Logger) WithName(name string) *Logger {
	l.Logger = l.Logger.WithName(name)
	return l
}

func (l *Logger) SetLevel(level zapcore.Level) {
	l.atomicLevel.SetLevel(level)
}

func (l *Logger) Level() zapcore.Level {
	return l.atomicLevel.Level()
}

func (l *Logger) Flush() {
	l.flush()
}

// Add verbosity flag to enable setting console log levels
func (l *Logger) AddLevelFlag(fs *pflag.FlagSet) {
	levelVal := NewLevelFlagValue(func(level zapcore.Level) {
		l.SetLevel(level)
	})
	fs.VarP(&levelVal, verbosityFlagName, verbosityFlagShortName, "Logging verbosity level (e.g. -v=debug). Can be one of 'debug', 'info', or 'error', or any positive integer corresponding to increasing levels of debug verbosity.")
}

func getDiagnosticsLogCore(name string, encoderConfig zapcore.EncoderConfig) (zapcore.Core, error) {
	logLevel, err := GetDiagnosticsLogLevel()
	if err != nil {
		return nil, err
	}

	logFolder, err := EnsureDiagnosticsLogsFolder()
	if err != nil {
		return nil, err
	}

	// The log file name is <sessionid>-<name>-<timestamp>-<pid>.
	// Several processes may share the session ID, so retry on name collisions.
	b := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(20*time.Millisecond),
		backoff.WithMaxInterval(100*time.Millisecond),
		backoff.WithMaxElapsedTime(2*time.Second),
	)
	logOutput, err := resiliency.RetryGet(context.Background(), b, func() (*os.File, error) {
		logname := fmt.Sprintf("%s-%s-%d-%d.log", sessionId, name, startTime.UnixMilli(), os.Getpid())
		return os.OpenFile(
			filepath.Join(logFolder, logname),
			os.O_RDWR|os.O_CREATE|os.O_EXCL,
			permissionOnlyOwnerReadWrite,
		)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}

	// Format diagnostics log to be machine readable
	logEncoder := zapcore.NewJSONEncoder(encoderConfig)

	return zapcore.NewCore(logEncoder, zapcore.AddSync(logOutput), zap.NewAtomicLevelAt(logLevel)), nil
}

// Returns the folder to write diagnostics logs and traces to.
func EnsureDiagnosticsLogsFolder() (string, error) {
	logFolder, found := os.LookupEnv(MOCKDAP_DIAGNOSTICS_LOG_FOLDER)
	if !found {
		logFolder = defaultLogPath
	}

	info, err := os.Stat(logFolder)
	if errors.Is(err, fs.ErrNotExist) {
		if err = os.MkdirAll(logFolder, permissionOnlyOwnerReadWriteTraverse); err != nil {
			return "", fmt.Errorf("failed to create the diagnostic log folder '%s': %w", logFolder, err)
		}
	} else if err != nil {
		return "", fmt.Errorf("failed to verify the existence of the diagnostic log folder '%s': %w", logFolder, err)
	} else if !info.IsDir() {
		return "", fmt.Errorf("'%s' is not a directory and cannot be used as a log folder", logFolder)
	}

	return logFolder, nil
}

var errDiagnosticsLogNotEnabled = errors.New("diagnostics log not enabled")

func GetDiagnosticsLogLevel() (zapcore.Level, error) {
	diagnosticsLogLevel, found := os.LookupEnv(MOCKDAP_DIAGNOSTICS_LOG_LEVEL)
	if !found {
		return zapcore.InvalidLevel, errDiagnosticsLogNotEnabled
	}

	logLevel, err := StringToLevel(diagnosticsLogLevel, zapcore.ErrorLevel)
	if err != nil {
		return zapcore.InvalidLevel, fmt.Errorf("failed to parse log level: %v", diagnosticsLogLevel)
	}

	return logLevel, nil
}

func SessionId() string {
	return sessionId
}

func init() {
	startTime = time.Now()
	if setSessionId, found := os.LookupEnv(MOCKDAP_LOG_SESSION_ID); found && setSessionId != "" {
		sessionId = setSessionId
	} else {
		sessionId = uuid.NewString()
	}
}

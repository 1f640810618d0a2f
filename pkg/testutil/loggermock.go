/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package testutil

import (
	"github.com/go-logr/logr"
	"github.com/stretchr/testify/mock"
)

// MockLoggerSink is a logr sink that records calls for assertions.
// Use NewMockLoggerSink to get a sink with Init and Enabled already stubbed.
type MockLoggerSink struct {
	mock.Mock
}

func NewMockLoggerSink() *MockLoggerSink {
	m := &MockLoggerSink{}
	m.On("Init", mock.Anything).Maybe()
	m.On("Enabled", mock.Anything).Return(true).Maybe()
	return m
}

// Logger wraps the sink into a logr.Logger.
func (m *MockLoggerSink) Logger() logr.Logger {
	return logr.New(m)
}

func (m *MockLoggerSink) Enabled(level int) bool {
	args := m.Called(level)
	return args.Bool(0)
}

func (m *MockLoggerSink) Error(err error, msg string, keysAndValues ...interface{}) {
	m.Called(err, msg, keysAndValues)
}

func (m *MockLoggerSink) Info(level int, msg string, keysAndValues ...interface{}) {
	m.Called(level, msg, keysAndValues)
}

func (m *MockLoggerSink) Init(info logr.RuntimeInfo) {
	m.Called(info)
}

func (m *MockLoggerSink) WithName(name string) logr.LogSink {
	args := m.Called(name)
	return args.Get(0).(logr.LogSink)
}

func (m *MockLoggerSink) WithValues(keysAndValues ...interface{}) logr.LogSink {
	args := m.Called(keysAndValues)
	return args.Get(0).(logr.LogSink)
}

var _ logr.LogSink = (*MockLoggerSink)(nil)

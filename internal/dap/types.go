/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package dap

import (
	"encoding/json"
)

// The types below are protocol bodies whose optional nested objects must be omitted
// when unset (pointer fields), or that carry properties newer than the generated
// go-dap schema (lazy presentation hints, output groups).

type Source struct {
	Name             string          `json:"name,omitempty"`
	Path             string          `json:"path,omitempty"`
	SourceReference  int             `json:"sourceReference,omitempty"`
	PresentationHint string          `json:"presentationHint,omitempty"`
	Origin           string          `json:"origin,omitempty"`
	AdapterData      json.RawMessage `json:"adapterData,omitempty"`
}

type StackFrame struct {
	Id                          int     `json:"id"`
	Name                        string  `json:"name"`
	Source                      *Source `json:"source,omitempty"`
	Line                        int     `json:"line"`
	Column                      int     `json:"column"`
	InstructionPointerReference string  `json:"instructionPointerReference,omitempty"`
}

type StackTraceResponseBody struct {
	StackFrames []StackFrame `json:"stackFrames"`
	TotalFrames int          `json:"totalFrames,omitempty"`
}

type Breakpoint struct {
	Id       int     `json:"id,omitempty"`
	Verified bool    `json:"verified"`
	Message  string  `json:"message,omitempty"`
	Source   *Source `json:"source,omitempty"`
	Line     int     `json:"line,omitempty"`
	Column   int     `json:"column,omitempty"`
}

type SetBreakpointsResponseBody struct {
	Breakpoints []Breakpoint `json:"breakpoints"`
}

type BreakpointEventBody struct {
	Reason     string     `json:"reason"`
	Breakpoint Breakpoint `json:"breakpoint"`
}

type VariablePresentationHint struct {
	Kind       string   `json:"kind,omitempty"`
	Attributes []string `json:"attributes,omitempty"`
	Visibility string   `json:"visibility,omitempty"`
	Lazy       bool     `json:"lazy,omitempty"`
}

type Variable struct {
	Name               string                    `json:"name"`
	Value              string                    `json:"value"`
	Type               string                    `json:"type,omitempty"`
	PresentationHint   *VariablePresentationHint `json:"presentationHint,omitempty"`
	EvaluateName       string                    `json:"evaluateName,omitempty"`
	VariablesReference int                       `json:"variablesReference"`
	MemoryReference    string                    `json:"memoryReference,omitempty"`

	// VariableMenuContext is a VS Code specific property selecting the context menu for the variable.
	VariableMenuContext string `json:"__vscodeVariableMenuContext,omitempty"`
}

type VariablesResponseBody struct {
	Variables []Variable `json:"variables"`
}

type EvaluateResponseBody struct {
	Result             string                    `json:"result"`
	Type               string                    `json:"type,omitempty"`
	PresentationHint   *VariablePresentationHint `json:"presentationHint,omitempty"`
	VariablesReference int                       `json:"variablesReference"`
}

type OutputEventBody struct {
	Category           string         `json:"category,omitempty"`
	Output             string         `json:"output"`
	Group              string         `json:"group,omitempty"`
	VariablesReference int            `json:"variablesReference,omitempty"`
	Source             *Source        `json:"source,omitempty"`
	Line               int            `json:"line,omitempty"`
	Column             int            `json:"column,omitempty"`
	Data               map[string]any `json:"data,omitempty"`
}

type DisassembledInstruction struct {
	Address     string  `json:"address"`
	Instruction string  `json:"instruction"`
	Location    *Source `json:"location,omitempty"`
	Line        int     `json:"line,omitempty"`
}

type DisassembleResponseBody struct {
	Instructions []DisassembledInstruction `json:"instructions"`
}

type ExceptionDetails struct {
	Message    string `json:"message,omitempty"`
	TypeName   string `json:"typeName,omitempty"`
	StackTrace string `json:"stackTrace,omitempty"`
}

type ExceptionInfoResponseBody struct {
	ExceptionId string            `json:"exceptionId"`
	Description string            `json:"description,omitempty"`
	BreakMode   string            `json:"breakMode"`
	Details     *ExceptionDetails `json:"details,omitempty"`
}

type DataBreakpointInfoResponseBody struct {
	// DataId is null when no data breakpoint can be set on the requested entity.
	DataId      *string  `json:"dataId"`
	Description string   `json:"description"`
	AccessTypes []string `json:"accessTypes,omitempty"`
	CanPersist  bool     `json:"canPersist,omitempty"`
}

type LoadedSourcesResponseBody struct {
	Sources []Source `json:"sources"`
}

type LoadedSourceEventBody struct {
	Reason string `json:"reason"`
	Source Source `json:"source"`
}

// ErrorMessage is the structured error attached to failed responses.
// ShowUser and SendTelemetry are tri-state: unset, explicitly true or explicitly false.
type ErrorMessage struct {
	Id            int               `json:"id"`
	Format        string            `json:"format"`
	Variables     map[string]string `json:"variables,omitempty"`
	SendTelemetry *bool             `json:"sendTelemetry,omitempty"`
	ShowUser      *bool             `json:"showUser,omitempty"`
	Url           string            `json:"url,omitempty"`
	UrlLabel      string            `json:"urlLabel,omitempty"`
}

type ErrorResponseBody struct {
	Error *ErrorMessage `json:"error,omitempty"`
}

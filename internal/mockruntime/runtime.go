/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

// Package mockruntime implements a mock "line interpreter" that executes a text file line by line.
// Words of a line act as stack frames and as machine instructions. A few patterns have meaning:
// "$name=value" assigns a variable, "log(text)", "prio(text)", "out(text)" and "err(text)"
// produce output, and "exception(name)" raises an exception.
//
// Lines and columns are 0-based throughout the package.
package mockruntime

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/smallnest/chanx"
	"k8s.io/utils/clock"
)

const (
	// DefaultGlobalVariablesDelay is the time it takes to "compute" each global variable.
	DefaultGlobalVariablesDelay = time.Second

	globalVariableCount  = 10
	eventQueueCapacity   = 16
	bottomFrameName      = "BOTTOM"
	disassemblyMarker    = "disassembly"
	lazyMarker           = "lazy"
	columnBreakpointSize = 8
)

var wordRegexp = regexp.MustCompile(`(?i)[a-z]+`)

// Word is a word of the program. Words are the stack frames and the instructions of the mock runtime.
type Word struct {
	Name  string
	Line  int
	Index int
}

// Breakpoint is a source breakpoint.
type Breakpoint struct {
	ID       int
	Line     int
	Verified bool
}

// StackFrame is a frame of the fake call stack.
type StackFrame struct {
	Index int
	Name  string
	File  string
	Line  int

	// Column is nil when execution is positioned at a whole line.
	Column *int

	// Instruction is the frame's instruction address. It is 0 unless the current line asks for disassembly.
	Instruction int
}

// Stack is a page of the fake call stack.
type Stack struct {
	Frames []StackFrame

	// Count is the total number of frames.
	Count int
}

// StepInTarget is a place "step in" can go to: a character of a word.
type StepInTarget struct {
	ID    int
	Label string
}

// Instruction is a disassembled instruction. Line is nil for addresses outside of the program.
type Instruction struct {
	Address     int
	Instruction string
	Line        *int
}

// Config contains the parts a Runtime is composed from.
type Config struct {
	// FileAccessor reads program sources. Defaults to the local file system.
	FileAccessor FileAccessor

	// GlobalVariablesDelay overrides DefaultGlobalVariablesDelay.
	GlobalVariablesDelay time.Duration

	// Clock drives the global variable delay. Defaults to the real clock.
	Clock clock.Clock

	Logger logr.Logger
}

// Runtime is the execution engine of the mock debugger.
// It is not safe for concurrent use, except for GetGlobalVariables and Events.
type Runtime struct {
	fileAccessor FileAccessor
	isWindows    bool
	globalsDelay time.Duration
	clock        clock.Clock
	log          logr.Logger

	sourceFile   string
	sourceLines  []string
	instructions []Word
	starts       []int
	ends         []int

	currentLine   int
	currentColumn *int
	instruction   int

	breakpoints            map[string][]*Breakpoint
	nextBreakpointID       int
	instructionBreakpoints map[int]struct{}
	dataBreakpoints        map[string]string

	namedException  *string
	otherExceptions bool

	variables *variableStore

	ctx        context.Context
	events     *chanx.UnboundedChan[Event]
	eventsLock sync.Mutex
	closed     bool
}

// New creates a runtime with no program loaded. Events are delivered until Close is called or ctx is done.
func New(ctx context.Context, cfg Config) *Runtime {
	fileAccessor := cfg.FileAccessor
	if fileAccessor == nil {
		fileAccessor = OSFileAccessor{}
	}

	globalsDelay := cfg.GlobalVariablesDelay
	if globalsDelay == 0 {
		globalsDelay = DefaultGlobalVariablesDelay
	}

	clk := cfg.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}

	log := cfg.Logger
	if log.GetSink() == nil {
		log = logr.Discard()
	}

	return &Runtime{
		fileAccessor:           fileAccessor,
		isWindows:              fileAccessor.IsWindows(),
		globalsDelay:           globalsDelay,
		clock:                  clk,
		log:                    log,
		breakpoints:            make(map[string][]*Breakpoint),
		nextBreakpointID:       1,
		instructionBreakpoints: make(map[int]struct{}),
		dataBreakpoints:        make(map[string]string),
		variables:              newVariableStore(),
		ctx:                    ctx,
		events:                 chanx.NewUnboundedChan[Event](ctx, eventQueueCapacity),
	}
}

// Events returns the channel that delivers runtime events in the order they were raised.
// The channel is closed after Close is called and all events have been received.
func (r *Runtime) Events() <-chan Event {
	return r.events.Out
}

// Close stops event delivery. Events raised afterwards are dropped.
func (r *Runtime) Close() {
	r.eventsLock.Lock()
	defer r.eventsLock.Unlock()

	if !r.closed {
		r.closed = true
		close(r.events.In)
	}
}

func (r *Runtime) sendEvent(evt Event) {
	r.eventsLock.Lock()
	defer r.eventsLock.Unlock()

	if r.closed {
		r.log.V(1).Info("Runtime event dropped after close", "Event", fmt.Sprintf("%T", evt))
		return
	}

	// The queue stops draining once the runtime context is done.
	select {
	case r.events.In <- evt:
	case <-r.ctx.Done():
		r.log.V(1).Info("Runtime event dropped after the runtime context ended", "Event", fmt.Sprintf("%T", evt))
	}
}

func (r *Runtime) SourceFile() string {
	return r.sourceFile
}

func (r *Runtime) SourceLines() []string {
	return r.sourceLines
}

func (r *Runtime) CurrentLine() int {
	return r.currentLine
}

// CurrentColumn returns the current column, or nil if execution is positioned at a whole line.
func (r *Runtime) CurrentColumn() *int {
	return r.currentColumn
}

func (r *Runtime) CurrentInstruction() int {
	return r.instruction
}

func (r *Runtime) setCurrentLine(line int) {
	r.currentLine = line
	if line >= 0 && line < len(r.starts) {
		r.instruction = r.starts[line]
	}
}

// NormalizePathAndCasing normalizes path following the conventions of the file accessor.
func (r *Runtime) NormalizePathAndCasing(path string) string {
	return NormalizePathAndCasing(path, r.isWindows)
}

// Start loads the program and runs it. With debug set, breakpoints are verified and
// execution stops on entry if requested, or runs to the first breakpoint.
func (r *Runtime) Start(program string, stopOnEntry bool, debug bool) error {
	if loadErr := r.loadSource(r.NormalizePathAndCasing(program)); loadErr != nil {
		return loadErr
	}

	if debug {
		if verifyErr := r.verifyBreakpoints(r.sourceFile); verifyErr != nil {
			return verifyErr
		}
		if stopOnEntry {
			r.findNextStatement(false, StopOnEntry)
			return nil
		}
	}

	r.Continue(false)
	return nil
}

// Reload reads the program source again, keeping the execution position where possible.
func (r *Runtime) Reload() error {
	if r.sourceFile == "" {
		return nil
	}

	contents, readErr := r.fileAccessor.ReadFile(r.sourceFile)
	if readErr != nil {
		return readErr
	}
	r.initializeContents(contents)

	line := min(r.currentLine, len(r.sourceLines)-1)
	r.setCurrentLine(max(line, 0))
	return nil
}

// Continue runs forward or backward until a stop condition or the end (beginning) of the program.
func (r *Runtime) Continue(reverse bool) {
	for !r.executeLine(r.currentLine, reverse) {
		if r.updateCurrentLine(reverse) {
			break
		}
		if r.findNextStatement(reverse, "") {
			break
		}
	}
}

// Step moves to the next (previous) instruction or non-empty line and stops.
func (r *Runtime) Step(instruction bool, reverse bool) {
	if instruction {
		if reverse {
			r.instruction--
		} else {
			r.instruction++
		}
		r.sendEvent(StopEvent{Reason: StopOnStep})
		return
	}

	if !r.executeLine(r.currentLine, reverse) {
		if !r.updateCurrentLine(reverse) {
			r.findNextStatement(reverse, StopOnStep)
		}
	}
}

// updateCurrentLine moves one line. Returns true if the beginning or the end of the program was reached.
func (r *Runtime) updateCurrentLine(reverse bool) bool {
	if reverse {
		if r.currentLine > 0 {
			r.setCurrentLine(r.currentLine - 1)
			return false
		}
		r.setCurrentLine(0)
		r.currentColumn = nil
		r.sendEvent(StopEvent{Reason: StopOnEntry})
		return true
	}

	if r.currentLine < len(r.sourceLines)-1 {
		r.setCurrentLine(r.currentLine + 1)
		return false
	}
	r.currentColumn = nil
	r.sendEvent(EndEvent{})
	return true
}

// StepIn moves to the given column, or to the next character of the line if targetID is nil.
func (r *Runtime) StepIn(targetID *int) {
	switch {
	case targetID != nil:
		column := *targetID
		r.currentColumn = &column
	case r.currentColumn != nil:
		if r.currentLine < len(r.sourceLines) && *r.currentColumn <= len(r.sourceLines[r.currentLine]) {
			column := *r.currentColumn + 1
			r.currentColumn = &column
		}
	default:
		column := 1
		r.currentColumn = &column
	}
	r.sendEvent(StopEvent{Reason: StopOnStep})
}

// StepOut moves to the previous character of the line.
func (r *Runtime) StepOut() {
	if r.currentColumn != nil {
		column := *r.currentColumn - 1
		if column == 0 {
			r.currentColumn = nil
		} else {
			r.currentColumn = &column
		}
	}
	r.sendEvent(StopEvent{Reason: StopOnStep})
}

// Goto moves execution to the start of a line and stops there.
func (r *Runtime) Goto(line int) error {
	if line < 0 || line >= len(r.sourceLines) {
		return fmt.Errorf("line %d is outside of the program", line)
	}
	r.setCurrentLine(line)
	r.currentColumn = nil
	r.sendEvent(StopEvent{Reason: StopOnGoto})
	return nil
}

// Pause stops execution where it is.
func (r *Runtime) Pause() {
	r.sendEvent(StopEvent{Reason: StopOnPause})
}

// GetStepInTargets returns the characters of the word that is the given frame.
func (r *Runtime) GetStepInTargets(frameID int) []StepInTarget {
	words := getWords(r.currentLine, r.getLine(r.currentLine))
	if frameID < 0 || frameID >= len(words) {
		return nil
	}

	word := words[frameID]
	targets := make([]StepInTarget, 0, len(word.Name))
	for i, c := range word.Name {
		targets = append(targets, StepInTarget{
			ID:    word.Index + i,
			Label: fmt.Sprintf("target: %c", c),
		})
	}
	return targets
}

// Stack returns frames [startFrame, endFrame) of the fake call stack: one frame per word
// of the current line and a final BOTTOM frame.
func (r *Runtime) Stack(startFrame int, endFrame int) Stack {
	line := r.getLine(r.currentLine)
	words := getWords(r.currentLine, line)
	words = append(words, Word{Name: bottomFrameName, Line: -1, Index: -1})

	var column *int
	if r.currentColumn != nil {
		c := *r.currentColumn
		column = &c
	}
	withInstructions := strings.Contains(line, disassemblyMarker)

	frames := []StackFrame{}
	for i := max(startFrame, 0); i < min(endFrame, len(words)); i++ {
		frame := StackFrame{
			Index:  i,
			Name:   fmt.Sprintf("%s(%d)", words[i].Name, i),
			File:   r.sourceFile,
			Line:   r.currentLine,
			Column: column,
		}
		if withInstructions {
			frame.Instruction = r.instruction + i
		}
		frames = append(frames, frame)
	}

	return Stack{Frames: frames, Count: len(words)}
}

// GetBreakpoints returns the possible column breakpoint positions of a line: the start of every
// word longer than 8 characters.
func (r *Runtime) GetBreakpoints(_ string, line int) []int {
	if line < 0 || line >= len(r.sourceLines) {
		return nil
	}

	columns := []int{}
	for _, w := range getWords(line, r.getLine(line)) {
		if len(w.Name) > columnBreakpointSize {
			columns = append(columns, w.Index)
		}
	}
	return columns
}

// SetBreakpoint adds a breakpoint and verifies the breakpoints of the file.
// The breakpoint is returned even if the file cannot be read, in which case it stays unverified.
func (r *Runtime) SetBreakpoint(path string, line int) (*Breakpoint, error) {
	path = r.NormalizePathAndCasing(path)
	bp := &Breakpoint{ID: r.nextBreakpointID, Line: line}
	r.nextBreakpointID++
	r.breakpoints[path] = append(r.breakpoints[path], bp)

	verifyErr := r.verifyBreakpoints(path)
	return bp, verifyErr
}

// ClearBreakpoint removes the first breakpoint on the given line. Returns nil if there is none.
func (r *Runtime) ClearBreakpoint(path string, line int) *Breakpoint {
	path = r.NormalizePathAndCasing(path)
	bps := r.breakpoints[path]
	for i, bp := range bps {
		if bp.Line == line {
			r.breakpoints[path] = append(bps[:i:i], bps[i+1:]...)
			return bp
		}
	}
	return nil
}

func (r *Runtime) ClearBreakpoints(path string) {
	delete(r.breakpoints, r.NormalizePathAndCasing(path))
}

// SetDataBreakpoint breaks on access to the named variable. accessType is "read", "write" or "readWrite".
// Setting a different access type for the same variable widens it to both.
func (r *Runtime) SetDataBreakpoint(address string, accessType string) bool {
	access := accessType
	if accessType == "readWrite" {
		access = "read write"
	}

	if existing, found := r.dataBreakpoints[address]; found {
		if existing != access {
			r.dataBreakpoints[address] = "read write"
		}
	} else {
		r.dataBreakpoints[address] = access
	}
	return true
}

func (r *Runtime) ClearAllDataBreakpoints() {
	clear(r.dataBreakpoints)
}

// SetExceptionsFilters selects the exceptions that stop execution:
// the exception with the given name (if not nil), and all others if otherExceptions is set.
func (r *Runtime) SetExceptionsFilters(namedException *string, otherExceptions bool) {
	r.namedException = namedException
	r.otherExceptions = otherExceptions
}

func (r *Runtime) SetInstructionBreakpoint(address int) bool {
	r.instructionBreakpoints[address] = struct{}{}
	return true
}

func (r *Runtime) ClearInstructionBreakpoints() {
	clear(r.instructionBreakpoints)
}

// GetGlobalVariables "computes" ten global variables, taking the configured delay for each.
// It stops early when cancelled reports true or ctx is done. Safe to call concurrently with other methods.
func (r *Runtime) GetGlobalVariables(ctx context.Context, cancelled func() bool) []*RuntimeVariable {
	globals := make([]*RuntimeVariable, 0, globalVariableCount)
	for i := range globalVariableCount {
		globals = append(globals, NewRuntimeVariable(fmt.Sprintf("global_%d", i), float64(i)))
		if cancelled != nil && cancelled() {
			break
		}

		select {
		case <-r.clock.After(r.globalsDelay):
		case <-ctx.Done():
			return globals
		}
	}
	return globals
}

func (r *Runtime) GetLocalVariables() []*RuntimeVariable {
	return r.variables.values()
}

// GetLocalVariable returns the named local variable, or nil.
func (r *Runtime) GetLocalVariable(name string) *RuntimeVariable {
	return r.variables.get(name)
}

// Disassemble returns count instructions starting at address. Addresses outside of the program are "nop".
func (r *Runtime) Disassemble(address int, count int) []Instruction {
	result := make([]Instruction, 0, max(count, 0))
	for a := address; a < address+count; a++ {
		if a >= 0 && a < len(r.instructions) {
			line := r.instructions[a].Line
			result = append(result, Instruction{
				Address:     a,
				Instruction: r.instructions[a].Name,
				Line:        &line,
			})
		} else {
			result = append(result, Instruction{Address: a, Instruction: "nop"})
		}
	}
	return result
}

func (r *Runtime) getLine(line int) string {
	if line < 0 || line >= len(r.sourceLines) {
		return ""
	}
	return strings.TrimSpace(r.sourceLines[line])
}

func getWords(l int, line string) []Word {
	var words []Word
	for _, loc := range wordRegexp.FindAllStringIndex(line, -1) {
		words = append(words, Word{Name: line[loc[0]:loc[1]], Line: l, Index: loc[0]})
	}
	return words
}

func (r *Runtime) loadSource(file string) error {
	if r.sourceFile == file {
		return nil
	}

	contents, readErr := r.fileAccessor.ReadFile(file)
	if readErr != nil {
		return readErr
	}

	r.sourceFile = r.NormalizePathAndCasing(file)
	r.initializeContents(contents)
	return nil
}

var lineSeparator = regexp.MustCompile(`\r?\n`)

func (r *Runtime) initializeContents(contents []byte) {
	r.sourceLines = lineSeparator.Split(string(contents), -1)
	r.instructions = nil
	r.starts = make([]int, 0, len(r.sourceLines))
	r.ends = make([]int, 0, len(r.sourceLines))

	for l, line := range r.sourceLines {
		r.starts = append(r.starts, len(r.instructions))
		r.instructions = append(r.instructions, getWords(l, line)...)
		r.ends = append(r.ends, len(r.instructions))
	}
}

// findNextStatement positions execution on the next (previous) non-empty line, starting at the current line.
// A breakpoint on the way stops execution. Returns true if execution stopped.
func (r *Runtime) findNextStatement(reverse bool, stopReason StopReason) bool {
	for ln := r.currentLine; (reverse && ln >= 0) || (!reverse && ln < len(r.sourceLines)); {
		var hit *Breakpoint
		for _, bp := range r.breakpoints[r.sourceFile] {
			if bp.Line == ln {
				hit = bp
				break
			}
		}
		if hit != nil {
			r.sendEvent(StopEvent{Reason: StopOnBreakpoint})
			if !hit.Verified {
				hit.Verified = true
				r.sendEvent(BreakpointValidatedEvent{Breakpoint: *hit})
			}
			r.setCurrentLine(ln)
			return true
		}

		if len(r.getLine(ln)) > 0 {
			r.setCurrentLine(ln)
			break
		}

		if reverse {
			ln--
		} else {
			ln++
		}
	}

	if stopReason != "" {
		r.sendEvent(StopEvent{Reason: stopReason})
		return true
	}
	return false
}

// verifyBreakpoints loads the file and verifies its unverified breakpoints.
// Breakpoints on empty lines or lines starting with '+' move one line down, on lines starting
// with '-' one line up. Breakpoints on lines containing "lazy" stay unverified.
func (r *Runtime) verifyBreakpoints(path string) error {
	bps := r.breakpoints[path]
	if len(bps) == 0 {
		return nil
	}

	if loadErr := r.loadSource(path); loadErr != nil {
		return loadErr
	}

	for _, bp := range bps {
		if bp.Verified || bp.Line < 0 || bp.Line >= len(r.sourceLines) {
			continue
		}

		srcLine := r.getLine(bp.Line)
		if len(srcLine) == 0 || strings.HasPrefix(srcLine, "+") {
			bp.Line++
		}
		if strings.HasPrefix(srcLine, "-") {
			bp.Line--
		}

		if !strings.Contains(r.getLine(bp.Line), lazyMarker) {
			bp.Verified = true
			r.sendEvent(BreakpointValidatedEvent{Breakpoint: *bp})
		}
	}
	return nil
}

/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package mockdebug

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/go-dap"

	dapsession "github.com/cvet/fonline-sub001/internal/dap"
	"github.com/cvet/fonline-sub001/internal/mockruntime"
)

// memoryVariable resolves a memory reference to the variable whose value is exposed as memory.
func (a *Adapter) memoryVariable(memoryReference string) *mockruntime.RuntimeVariable {
	handle, convErr := strconv.Atoi(memoryReference)
	if convErr != nil {
		return nil
	}
	container, _ := a.variableHandles.Lookup(handle)
	rv, isVariable := container.(*mockruntime.RuntimeVariable)
	if !isVariable || rv.Memory() == nil {
		return nil
	}
	return rv
}

func (a *Adapter) onReadMemory(_ context.Context, s *dapsession.Session, req *dapsession.Request, resp *dapsession.Response) {
	var args dap.ReadMemoryArguments
	if !decodeArguments(s, req, resp, &args) {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	rv := a.memoryVariable(args.MemoryReference)
	if rv == nil {
		resp.Body = &dap.ReadMemoryResponseBody{
			Address:         strconv.Itoa(args.Offset),
			Data:            "",
			UnreadableBytes: args.Count,
		}
		s.SendResponse(resp)
		return
	}

	memory := rv.Memory()
	start := min(max(args.Offset, 0), len(memory))
	end := min(max(args.Offset+args.Count, start), len(memory))
	data := memory[start:end]

	resp.Body = &dap.ReadMemoryResponseBody{
		Address:         strconv.Itoa(args.Offset),
		Data:            base64.StdEncoding.EncodeToString(data),
		UnreadableBytes: args.Count - len(data),
	}
	s.SendResponse(resp)
}

// onWriteMemory writes as much of the data as fits into the variable memory.
func (a *Adapter) onWriteMemory(_ context.Context, s *dapsession.Session, req *dapsession.Request, resp *dapsession.Response) {
	var args dap.WriteMemoryArguments
	if !decodeArguments(s, req, resp, &args) {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	bytesWritten := 0
	if rv := a.memoryVariable(args.MemoryReference); rv != nil {
		data, decodeErr := base64.StdEncoding.DecodeString(args.Data)
		if decodeErr != nil {
			a.log.V(1).Info("Memory data is not valid base64, nothing written", "MemoryReference", args.MemoryReference)
		} else {
			bytesWritten = rv.SetMemory(data, args.Offset)
		}
	}

	resp.Body = &dap.WriteMemoryResponseBody{BytesWritten: bytesWritten}
	s.SendResponse(resp)

	s.SendEvent(dapsession.NewEvent("invalidated", &dap.InvalidatedEventBody{
		Areas: []dap.InvalidatedAreas{"variables"},
	}))
}

// onDisassemble disassembles the program starting at an instruction address.
// Addresses are reported in the notation of the requested memory reference.
func (a *Adapter) onDisassemble(_ context.Context, s *dapsession.Session, req *dapsession.Request, resp *dapsession.Response) {
	var args dap.DisassembleArguments
	if !decodeArguments(s, req, resp, &args) {
		return
	}

	instructions := []dapsession.DisassembledInstruction{}

	baseAddress, valid := parseMemoryReference(args.MemoryReference)
	if !valid {
		a.log.V(1).Info("Memory reference cannot be disassembled", "MemoryReference", args.MemoryReference)
		resp.Body = &dapsession.DisassembleResponseBody{Instructions: instructions}
		s.SendResponse(resp)
		return
	}

	digits := ""
	if len(args.MemoryReference) > len(memoryReferencePrefix) {
		digits = strings.TrimLeft(args.MemoryReference[len(memoryReferencePrefix):], "+-")
	}
	isHex := strings.HasPrefix(digits, "0x") || strings.HasPrefix(digits, "0X")
	pad := len(digits)
	if isHex {
		pad -= 2
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	sourceFile := a.runtime.SourceFile()
	lastLine := -1
	for _, instruction := range a.runtime.Disassemble(baseAddress+args.InstructionOffset, args.InstructionCount) {
		di := dapsession.DisassembledInstruction{
			Address:     formatInstructionAddress(instruction.Address, isHex, pad),
			Instruction: instruction.Instruction,
		}
		if instruction.Line != nil && *instruction.Line != lastLine {
			lastLine = *instruction.Line
			di.Location = a.createSource(sourceFile)
			di.Line = a.coords.DebuggerLineToClient(lastLine)
		}
		instructions = append(instructions, di)
	}

	resp.Body = &dapsession.DisassembleResponseBody{Instructions: instructions}
	s.SendResponse(resp)
}

func formatInstructionAddress(address int, isHex bool, pad int) string {
	sign := ""
	if address < 0 {
		sign = "-"
		address = -address
	}
	if isHex {
		return fmt.Sprintf("%s0x%0*x", sign, pad, address)
	}
	return fmt.Sprintf("%s%0*d", sign, pad, address)
}

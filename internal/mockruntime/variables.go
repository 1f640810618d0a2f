/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package mockruntime

import (
	"strings"
	"sync"

	"github.com/emirpasic/gods/maps/linkedhashmap"
)

// RuntimeVariable is a variable of the mock program.
// The value is one of: nil, bool, float64, string, or []*RuntimeVariable for composite values.
type RuntimeVariable struct {
	Name string

	// Reference is the variable handle the adapter assigned to this variable, 0 if none yet.
	Reference int

	value any

	// memory holds the UTF-8 bytes of a string value, derived on first access
	memory []byte
}

func NewRuntimeVariable(name string, value any) *RuntimeVariable {
	return &RuntimeVariable{Name: name, value: value}
}

func (v *RuntimeVariable) Value() any {
	return v.value
}

// SetValue replaces the value. The memory view is derived again on next access.
func (v *RuntimeVariable) SetValue(value any) {
	v.value = value
	v.memory = nil
}

// Children returns the fields of a composite value, or nil.
func (v *RuntimeVariable) Children() []*RuntimeVariable {
	children, _ := v.value.([]*RuntimeVariable)
	return children
}

// Child returns the field of a composite value with the given name.
func (v *RuntimeVariable) Child(name string) *RuntimeVariable {
	for _, child := range v.Children() {
		if child.Name == name {
			return child
		}
	}
	return nil
}

// Memory returns the bytes backing a string value. Other values have no memory.
func (v *RuntimeVariable) Memory() []byte {
	if v.memory == nil {
		if s, isString := v.value.(string); isString {
			v.memory = []byte(s)
		}
	}
	return v.memory
}

// SetMemory overwrites memory starting at offset and decodes the value from the result.
// Bytes that do not fit are dropped. Returns the number of bytes written.
func (v *RuntimeVariable) SetMemory(data []byte, offset int) int {
	memory := v.Memory()
	if memory == nil || offset < 0 || offset > len(memory) {
		return 0
	}

	written := copy(memory[offset:], data)
	v.memory = memory
	v.value = strings.ToValidUTF8(string(memory), "�")
	return written
}

// variableStore holds the locals of the program in the order they were first assigned.
type variableStore struct {
	lock sync.Mutex
	vars *linkedhashmap.Map
}

func newVariableStore() *variableStore {
	return &variableStore{vars: linkedhashmap.New()}
}

func (s *variableStore) get(name string) *RuntimeVariable {
	s.lock.Lock()
	defer s.lock.Unlock()

	v, found := s.vars.Get(name)
	if !found {
		return nil
	}
	return v.(*RuntimeVariable)
}

func (s *variableStore) has(name string) bool {
	return s.get(name) != nil
}

// put stores v. A replaced variable keeps its position.
func (s *variableStore) put(v *RuntimeVariable) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.vars.Put(v.Name, v)
}

func (s *variableStore) values() []*RuntimeVariable {
	s.lock.Lock()
	defer s.lock.Unlock()

	result := make([]*RuntimeVariable, 0, s.vars.Size())
	it := s.vars.Iterator()
	for it.Next() {
		result = append(result, it.Value().(*RuntimeVariable))
	}
	return result
}

/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

// Package syncmap is a generic wrapper over standard library sync.Map

package syncmap

import "sync"

func zero[T any]() T {
	return *new(T)
}

type Map[Key comparable, Value any] sync.Map

func (m *Map[Key, Value]) syncMap() *sync.Map {
	return (*sync.Map)(m)
}

func (m *Map[Key, Value]) Store(key Key, value Value) {
	m.syncMap().Store(key, value)
}

// Returns the value stored in the map (if found), and a boolean indicating whether the value was found.
func (m *Map[Key, Value]) Load(key Key) (Value, bool) {
	anyValue, found := m.syncMap().Load(key)
	if !found {
		return zero[Value](), false
	} else {
		return zeroIfNil[Value](anyValue), true
	}
}

// Deletes the value for the passed key.
// If the key has no corresponding value, the map is unchanged.
func (m *Map[Key, Value]) Delete(key Key) {
	m.syncMap().Delete(key)
}

func zeroIfNil[T any](v any) T {
	if v == nil {
		return zero[T]()
	} else {
		return v.(T)
	}
}

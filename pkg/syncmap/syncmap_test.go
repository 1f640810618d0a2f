/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package syncmap

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStoreLoadDelete(t *testing.T) {
	t.Parallel()

	var m Map[int, bool]

	_, found := m.Load(1)
	require.False(t, found)

	m.Store(1, false)
	value, found := m.Load(1)
	require.True(t, found)
	require.False(t, value)

	m.Store(1, true)
	value, _ = m.Load(1)
	require.True(t, value)

	m.Delete(1)
	_, found = m.Load(1)
	require.False(t, found)
}

func TestNilValuesLoadAsZero(t *testing.T) {
	t.Parallel()

	var m Map[string, *int]
	m.Store("nil", nil)

	value, found := m.Load("nil")
	require.True(t, found)
	require.Nil(t, value)
}

func TestConcurrentAccess(t *testing.T) {
	t.Parallel()

	var m Map[int, int]
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m.Store(i, i*i)
		}(i)
	}
	wg.Wait()

	for i := 0; i < 10; i++ {
		value, found := m.Load(i)
		require.True(t, found)
		require.Equal(t, i*i, value)
	}
}

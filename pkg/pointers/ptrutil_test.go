/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package pointers

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMakeAllocatesOnlyWhenNil(t *testing.T) {
	t.Parallel()

	var p *int
	Make(&p, 5)
	require.NotNil(t, p)
	require.Equal(t, 5, *p)

	original := p
	Make(&p, 7)
	require.Same(t, original, p)
	require.Equal(t, 7, *p)

	require.Panics(t, func() { Make[int](nil, 1) })
}

func TestTrueValueIsTriState(t *testing.T) {
	t.Parallel()

	var unset *bool
	require.False(t, TrueValue(unset))

	Make(&unset, false)
	require.False(t, TrueValue(unset))

	Make(&unset, true)
	require.True(t, TrueValue(unset))
}

func TestGetValueOrDefault(t *testing.T) {
	t.Parallel()

	var s *string
	require.Equal(t, "default", GetValueOrDefault(s, "default"))

	Make(&s, "value")
	require.Equal(t, "value", GetValueOrDefault(s, "default"))
}

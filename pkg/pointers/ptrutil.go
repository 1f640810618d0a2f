/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package pointers

func GetValueOrDefault[T any, PT *T](p PT, defaultValue T) T {
	if p == nil {
		return defaultValue
	}
	return *p
}

// Returns true if the boolean pointer has value and the value is true.
func TrueValue[T ~bool, PT *T](p PT) bool {
	return bool(GetValueOrDefault(p, false))
}

// Sets the value of the pointer to the given value, allocating new memory if the pointer is nil.
func Make[T any, PT *T](pp *PT, val T) {
	if pp == nil {
		panic("nil pointer passed as target for pointers.Make()")
	}

	if *pp == nil {
		*pp = new(T)
	}

	**pp = val
}

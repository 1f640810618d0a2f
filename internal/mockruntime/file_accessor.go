/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package mockruntime

import (
	"fmt"
	"os"
	"runtime"
	"strings"
)

// FileAccessor reads program sources.
type FileAccessor interface {
	// IsWindows reports whether paths follow Windows conventions.
	IsWindows() bool

	ReadFile(path string) ([]byte, error)
}

// OSFileAccessor reads program sources from the local file system.
type OSFileAccessor struct{}

var _ FileAccessor = OSFileAccessor{}

func (OSFileAccessor) IsWindows() bool {
	return runtime.GOOS == "windows"
}

func (OSFileAccessor) ReadFile(path string) ([]byte, error) {
	contents, readErr := os.ReadFile(path)
	if readErr != nil {
		return nil, fmt.Errorf("could not read program source: %w", readErr)
	}
	return contents, nil
}

// NormalizePathAndCasing makes paths comparable.
// Windows paths use backslashes and are lower-cased; other paths use forward slashes.
func NormalizePathAndCasing(path string, isWindows bool) string {
	if isWindows {
		return strings.ToLower(strings.ReplaceAll(path, "/", `\`))
	}
	return strings.ReplaceAll(path, `\`, "/")
}

/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package dap

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

const platformWindows = "windows"

var (
	windowsDrivePath = regexp.MustCompile(`^[a-zA-Z]:`)
	windowsDriveURI  = regexp.MustCompile(`^/[a-zA-Z]:`)
)

// PathToURI converts a native path of the given platform to a percent-encoded file URI.
// On Windows the drive letter is lower-cased and backslashes become forward slashes.
func PathToURI(path string, goos string) string {
	if goos == platformWindows {
		if windowsDrivePath.MatchString(path) {
			path = strings.ToLower(path[:1]) + path[1:]
		}
		path = strings.ReplaceAll(path, `\`, "/")
	}

	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	u := url.URL{Scheme: "file", Path: path}
	return u.String()
}

// URIToPath converts a file URI to a native path of the given platform.
// On Windows a leading "/c:" becomes "c:" and forward slashes become backslashes.
func URIToPath(uri string, goos string) (string, error) {
	u, parseErr := url.Parse(uri)
	if parseErr != nil {
		return "", fmt.Errorf("invalid URI '%s': %w", uri, parseErr)
	}

	path := u.Path
	if goos == platformWindows {
		if windowsDriveURI.MatchString(path) {
			path = strings.ToLower(path[1:2]) + path[2:]
		}
		path = strings.ReplaceAll(path, "/", `\`)
	}

	return path, nil
}

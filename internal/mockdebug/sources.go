/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package mockdebug

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/go-dap"
	"k8s.io/utils/clock"

	dapsession "github.com/cvet/fonline-sub001/internal/dap"
	"github.com/cvet/fonline-sub001/pkg/resiliency"
)

const (
	DefaultWatchDebounce = 100 * time.Millisecond

	// maxWatchDelayFactor bounds how long a burst of changes can postpone the reload.
	maxWatchDelayFactor = 10
)

// programWatcher reloads the program when its file changes on disk.
type programWatcher struct {
	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
}

// watchProgram starts watching the program file. Must be called with the adapter lock held.
func (a *Adapter) watchProgram(ctx context.Context, path string) error {
	a.stopWatching()

	watcher, watcherErr := fsnotify.NewWatcher()
	if watcherErr != nil {
		return fmt.Errorf("failed to create file watcher for program '%s': %w", path, watcherErr)
	}

	// Editors often replace files instead of writing them, so the directory is watched
	dir := filepath.Dir(path)
	if addErr := watcher.Add(dir); addErr != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to add directory '%s' to watcher: %w", dir, addErr)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	a.watcher = &programWatcher{watcher: watcher, cancel: cancel}

	// A clock without delayed execution leaves the debouncer on the real clock.
	clk, _ := a.clock.(clock.WithDelayedExecution)
	reload := resiliency.NewDebounceLastActionWithClock(a.reloadProgram, a.watchDebounce, maxWatchDelayFactor*a.watchDebounce, clk)

	go func() {
		defer func() { _ = watcher.Close() }()
		log := a.log.WithValues("Program", path)

		for {
			select {
			case <-watchCtx.Done():
				return

			case we, isOpen := <-watcher.Events:
				if !isOpen {
					return
				}
				if !sameFile(we.Name, path) || !we.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
					continue
				}
				log.V(1).Info("Program changed", "Op", we.Op.String())
				reload.Run(watchCtx, path)

			case watchErr, isOpen := <-watcher.Errors:
				if !isOpen {
					return
				}
				log.Error(watchErr, "Program file watcher failed")
			}
		}
	}()

	return nil
}

// stopWatching stops watching the program file. Must be called with the adapter lock held.
func (a *Adapter) stopWatching() {
	if a.watcher != nil {
		a.watcher.cancel()
		a.watcher = nil
	}
}

func (a *Adapter) reloadProgram(path string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.runtime.SourceFile() != path {
		return
	}
	if reloadErr := a.runtime.Reload(); reloadErr != nil {
		a.log.Error(reloadErr, "Program could not be reloaded", "Program", path)
		return
	}

	a.session.SendEvent(dapsession.NewEvent("loadedSource", &dapsession.LoadedSourceEventBody{
		Reason: "changed",
		Source: *a.createSource(path),
	}))
	if a.useInvalidatedEvent {
		a.session.SendEvent(dapsession.NewEvent("invalidated", &dap.InvalidatedEventBody{
			Areas: []dap.InvalidatedAreas{"all"},
		}))
	}
}

// sameFile compares a watcher event path with the program path, which may have been normalized to lower case.
func sameFile(eventPath string, programPath string) bool {
	return strings.EqualFold(filepath.Clean(eventPath), filepath.Clean(programPath))
}

func (a *Adapter) onLoadedSources(_ context.Context, s *dapsession.Session, _ *dapsession.Request, resp *dapsession.Response) {
	a.mu.Lock()
	defer a.mu.Unlock()

	sources := []dapsession.Source{}
	if program := a.runtime.SourceFile(); program != "" {
		sources = append(sources, *a.createSource(program))
	}

	resp.Body = &dapsession.LoadedSourcesResponseBody{Sources: sources}
	s.SendResponse(resp)
}

// onSource returns the contents of the launched program. Other paths are not served.
func (a *Adapter) onSource(_ context.Context, s *dapsession.Session, req *dapsession.Request, resp *dapsession.Response) {
	var args dap.SourceArguments
	if !decodeArguments(s, req, resp, &args) {
		return
	}

	a.mu.Lock()
	path := a.runtime.SourceFile()
	requested := ""
	if args.Source != nil && args.Source.Path != "" {
		requested = a.runtime.NormalizePathAndCasing(a.coords.ClientPathToDebugger(args.Source.Path))
	}
	a.mu.Unlock()

	if path == "" {
		s.SendErrorResponse(resp, ErrCodeSourceUnavailable, "no source available", nil, dapsession.ErrorUser)
		return
	}
	if requested != "" && !sameFile(requested, path) {
		a.log.Info("Refusing to serve a source that is not the program", "Path", requested)
		s.SendErrorResponse(resp, ErrCodeSourceUnavailable, "no source available", nil, dapsession.ErrorUser)
		return
	}

	contents, readErr := a.fileAccessor.ReadFile(path)
	if readErr != nil {
		s.SendErrorResponse(resp, ErrCodeSourceUnavailable, "could not read source: {_error}", map[string]string{
			"_error": readErr.Error(),
		}, dapsession.ErrorUser)
		return
	}

	resp.Body = &dap.SourceResponseBody{Content: string(contents)}
	s.SendResponse(resp)
}

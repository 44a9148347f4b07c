/*
 * MIT License
 *
 * Copyright (c) 2026 Consoled Authors
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

package confdir

import (
	"os"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Watcher delivers a Reloaded signal whenever the config file is rewritten,
// so the daemon can re-Parse and diff without waiting on SIGHUP alone.
type Watcher struct {
	w        *fsnotify.Watcher
	Reloaded chan struct{}
	log      *logrus.Logger
}

// Watch starts watching path's parent directory (watching the file itself
// misses editors that replace it via rename-into-place) and returns a
// Watcher whose Reloaded channel fires on every write/create/rename event
// naming path. Call Close when done.
func Watch(path string, log *logrus.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	dir := dirOf(path)
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, err
	}

	w := &Watcher{w: fw, Reloaded: make(chan struct{}, 1), log: log}
	go w.loop(path)
	return w, nil
}

func (w *Watcher) loop(path string) {
	for {
		select {
		case ev, ok := <-w.w.Events:
			if !ok {
				return
			}
			if ev.Name != path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			select {
			case w.Reloaded <- struct{}{}:
			default:
			}
		case err, ok := <-w.w.Errors:
			if !ok {
				return
			}
			if w.log != nil {
				w.log.WithError(err).Warn("confdir: watch error")
			}
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.w.Close()
}

func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if os.IsPathSeparator(path[i]) {
			return path[:i]
		}
	}
	return "."
}

// Diff reports which console names are present in next but not prev
// (Added) and present in prev but not next (Removed); consoles present in
// both are left untouched by a live reload regardless of other field
// changes, matching spec.md §4.7's "unchanged consoles are left alone".
func Diff(prev, next *Config) (added, removed []ConsoleConfig) {
	prevByName := map[string]ConsoleConfig{}
	if prev != nil {
		for _, c := range prev.Consoles {
			prevByName[c.Name] = c
		}
	}
	nextByName := map[string]ConsoleConfig{}
	if next != nil {
		for _, c := range next.Consoles {
			nextByName[c.Name] = c
		}
	}

	for name, c := range nextByName {
		if _, ok := prevByName[name]; !ok {
			added = append(added, c)
		}
	}
	for name, c := range prevByName {
		if _, ok := nextByName[name]; !ok {
			removed = append(removed, c)
		}
	}
	return added, removed
}

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

package daemon

import (
	"sync"

	"github.com/sabouaram/consoled/confdir"
	"github.com/sabouaram/consoled/object"
)

// openResult is one completed (possibly failed) Opener.Open call for a
// console named by a live-reload CONSOLE directive.
type openResult struct {
	cfg    confdir.ConsoleConfig
	object *object.Object
	err    error
}

// openPool runs Opener.Open calls for newly-added consoles off the engine
// goroutine, bounded to width concurrent opens, and reports each result on
// a buffered channel the engine drains once per Tick. This keeps a slow
// tty/telnet/exec open from stalling the readiness loop for every other
// object (Design Note 9.c's worker pool).
//
// Only Open itself runs concurrently; the registry Insert and link Attach
// that follow a successful open still happen on the engine goroutine via
// openPool.drain (called from Daemon.run), preserving the single-mutator
// rule for Writer/Readers.
type openPool struct {
	sem     chan struct{}
	wg      sync.WaitGroup
	results chan openResult
}

func newOpenPool(width int) *openPool {
	if width <= 0 {
		width = 1
	}
	return &openPool{
		sem:     make(chan struct{}, width),
		results: make(chan openResult, 32),
	}
}

// submit constructs the Console object and opens it on a pool goroutine.
func (p *openPool) submit(d *Daemon, c confdir.ConsoleConfig) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.sem <- struct{}{}
		defer func() { <-p.sem }()

		console := object.NewConsole(c.Name, c.Dev, c.Bps, "", d.Log)
		err := object.Open(console, d.Transport, d.Truncate)
		p.results <- openResult{cfg: c, object: console, err: err}
	}()
}

// drain is called from the engine goroutine each Tick; it applies every
// open that has completed since the last call without blocking.
func (p *openPool) drain(d *Daemon) {
	for {
		select {
		case r := <-p.results:
			d.finishOpen(r)
		default:
			return
		}
	}
}

// close waits for any in-flight opens to finish. It deliberately does not
// close p.results: a Daemon may be Started again after Stop, and the pool
// is reused across that cycle.
func (p *openPool) close() {
	p.wg.Wait()
}

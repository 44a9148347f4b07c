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

// Package registry is the process-wide collection of live objects (spec.md
// §4.3): unique by (Kind, Name), with stable-order iteration for the I/O
// engine's readiness sweep. It is modeled as an owned collection passed
// explicitly through the engine rather than a file-scope singleton (Design
// Note 9.b).
package registry

import (
	"sort"
	"sync"

	"github.com/sabouaram/consoled/errs"
	"github.com/sabouaram/consoled/object"
)

type key struct {
	kind object.Kind
	name string
}

// Registry holds every live Object. Insert/Remove/Lookup may be called from
// any goroutine (the daemon's client accept loop inserts new ClientSocket
// objects from its own goroutine); Iterate is only ever called from the engine
// goroutine, which also does all topology mutation, so it takes a
// consistent read-only snapshot under the same mutex.
type Registry struct {
	mu   sync.Mutex
	objs map[key]*object.Object
}

func New() *Registry {
	return &Registry{objs: make(map[key]*object.Object)}
}

// Insert adds obj, failing with Duplicate if an object of the same
// (Kind, Name) already exists (invariant 6).
func (r *Registry) Insert(obj *object.Object) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key{obj.Kind, obj.Name}
	if _, ok := r.objs[k]; ok {
		return errs.New(errs.Duplicate, "registry.insert", obj.Name, nil)
	}
	r.objs[k] = obj
	return nil
}

// Remove drops obj from the registry. It is a no-op if obj is not present.
func (r *Registry) Remove(obj *object.Object) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.objs, key{obj.Kind, obj.Name})
}

// Lookup returns the object of the given (kind, name), or nil if none
// exists.
func (r *Registry) Lookup(kind object.Kind, name string) *object.Object {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.objs[key{kind, name}]
}

// Iterate returns every live object in stable (Kind, then Name) order, so
// repeated ticks over an unchanged registry visit objects identically —
// a property the I/O engine's tests rely on.
func (r *Registry) Iterate() []*object.Object {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*object.Object, 0, len(r.objs))
	for _, o := range r.objs {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return object.Compare(out[i], out[j]) < 0
	})
	return out
}

// Len reports the number of live objects.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.objs)
}

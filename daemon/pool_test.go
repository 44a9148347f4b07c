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
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sabouaram/consoled/confdir"
	"github.com/sabouaram/consoled/object"
)

var _ = Describe("openPool", func() {
	It("opens consoles off the caller's goroutine and reports them via drain", func() {
		d := New(filepath.Join(os.TempDir(), "consoled-pool-test.cf"), 0, false, nil)
		p := newOpenPool(2)

		p.submit(d, confdir.ConsoleConfig{Name: "p1", Dev: "exec:///bin/cat"})

		var got *object.Object
		Eventually(func() *object.Object {
			p.drain(d)
			got = d.Reg.Lookup(object.Console, "p1")
			return got
		}).ShouldNot(BeNil())
		Expect(got.Active()).To(BeTrue())
	})

	It("reports a failed open through drain without registering anything", func() {
		d := New(filepath.Join(os.TempDir(), "consoled-pool-test2.cf"), 0, false, nil)
		p := newOpenPool(2)

		p.submit(d, confdir.ConsoleConfig{Name: "bad", Dev: "carrier-pigeon://nowhere"})
		p.close()
		p.drain(d)

		Expect(d.Reg.Lookup(object.Console, "bad")).To(BeNil())
	})
})

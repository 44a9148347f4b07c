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

package control_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sabouaram/consoled/control"
	"github.com/sabouaram/consoled/object"
)

func TestControl(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Control Parser Suite")
}

func newClient() *object.Object {
	c, _ := object.NewClient("u@h", "h", object.NoFD, nil, nil)
	return c
}

var _ = Describe("IAC", func() {
	var p control.IAC
	var o *object.Object

	BeforeEach(func() {
		p = control.IAC{}
		o = newClient()
	})

	It("passes clean payloads through unchanged", func() {
		in := []byte("hello world\n")
		Expect(p.Parse(o, append([]byte(nil), in...))).To(Equal(in))
		Expect(o.GotIAC).To(BeFalse())
	})

	It("strips a WILL negotiation entirely", func() {
		in := []byte{'a', 255, 251, 1, 'b'}
		Expect(p.Parse(o, in)).To(Equal([]byte{'a', 'b'}))
		Expect(o.GotIAC).To(BeFalse())
	})

	It("unescapes a literal 0xFF data byte (IAC IAC)", func() {
		in := []byte{'a', 255, 255, 'b'}
		Expect(p.Parse(o, in)).To(Equal([]byte{'a', 255, 'b'}))
	})

	It("drops bytes inside a subnegotiation block", func() {
		in := []byte{'a', 255, 250, 1, 2, 3, 255, 240, 'b'}
		Expect(p.Parse(o, in)).To(Equal([]byte{'a', 'b'}))
	})

	It("carries GotIAC state across reads when a sequence is split", func() {
		first := p.Parse(o, []byte{'a', 255})
		Expect(first).To(Equal([]byte{'a'}))
		Expect(o.GotIAC).To(BeTrue())

		second := p.Parse(o, []byte{251, 1, 'b'})
		Expect(second).To(Equal([]byte{'b'}))
		Expect(o.GotIAC).To(BeFalse())
	})

	It("is idempotent on a payload with no control bytes", func() {
		in := []byte("plain text")
		once := p.Parse(o, append([]byte(nil), in...))
		twice := p.Parse(o, append([]byte(nil), once...))
		Expect(twice).To(Equal(once))
	})
})

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

package link_test

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sabouaram/consoled/link"
	"github.com/sabouaram/consoled/object"
	"github.com/sabouaram/consoled/registry"
)

func TestLink(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Link Manager Suite")
}

// pipeOpener hands back one end of an os.Pipe so Console objects can become
// Active() without touching a real tty.
type pipeOpener struct{ fd int }

func (p pipeOpener) Open(o *object.Object) (int, error) { return p.fd, nil }

func newPipeConsole(name string) *object.Object {
	_, w, err := os.Pipe()
	Expect(err).ToNot(HaveOccurred())
	c := object.NewConsole(name, "tty:///dev/null", 9600, "", nil)
	Expect(object.Open(c, pipeOpener{fd: int(w.Fd())}, false)).To(Succeed())
	return c
}

func newPipeClient(name string) *object.Object {
	_, w, _ := os.Pipe()
	c, err := object.NewClient(name, "host", int(w.Fd()), nil, nil)
	Expect(err).ToNot(HaveOccurred())
	return c
}

var _ = Describe("Manager", func() {
	var reg *registry.Registry
	var mgr *link.Manager

	BeforeEach(func() {
		reg = registry.New()
		mgr = link.New(reg, nil)
	})

	Context("Steal law", func() {
		It("notifies and closes the displaced writer, preserves other readers", func() {
			console := newPipeConsole("c1")
			Expect(reg.Insert(console)).To(Succeed())

			logf := object.NewLogFile(filepath.Join(os.TempDir(), "c1-steal.log"), nil)
			Expect(reg.Insert(logf)).To(Succeed())
			Expect(mgr.Attach(console, logf, nil, true)).To(Succeed())

			clientA := newPipeClient("userA@hostA")
			Expect(reg.Insert(clientA)).To(Succeed())
			Expect(mgr.Attach(clientA, console, nil, false)).To(Succeed())
			Expect(console.Writer).To(Equal(clientA))

			clientB := newPipeClient("userB@hostB")
			Expect(reg.Insert(clientB)).To(Succeed())
			Expect(mgr.Attach(clientB, console, nil, false)).To(Succeed())

			Expect(console.Writer).To(Equal(clientB))
			Expect(clientA.Buf.Len()).To(BeNumerically(">", 0))
			Expect(clientA.Buf.GotEOF()).To(BeTrue())

			// The console's other reader (the log file) must be untouched.
			Expect(console.Readers).To(ContainElement(logf))
			Expect(logf.Writer).To(Equal(console))
		})
	})

	Context("Cascade close of a simple orphan chain", func() {
		It("recursively closes a console left with no writer and no readers", func() {
			console := newPipeConsole("c2")
			Expect(reg.Insert(console)).To(Succeed())

			clientA := newPipeClient("userA@hostA")
			Expect(reg.Insert(clientA)).To(Succeed())
			Expect(mgr.Attach(clientA, console, nil, false)).To(Succeed())

			mgr.Close(clientA)

			Expect(console.Writer).To(BeNil())
			Expect(console.Readers).To(BeEmpty())
			Expect(console.Active()).To(BeFalse())
			Expect(reg.Lookup(object.ClientSocket, clientA.Name)).To(BeNil())
		})
	})

	Context("Attach and detach (scenario 2)", func() {
		It("leaves the console's log file linked after the client detaches", func() {
			console := newPipeConsole("c3")
			Expect(reg.Insert(console)).To(Succeed())

			logf := object.NewLogFile(filepath.Join(os.TempDir(), "c3-detach.log"), nil)
			Expect(reg.Insert(logf)).To(Succeed())
			Expect(mgr.Attach(console, logf, nil, true)).To(Succeed())

			clientA := newPipeClient("userA@hostA")
			Expect(reg.Insert(clientA)).To(Succeed())
			Expect(mgr.Attach(clientA, console, nil, false)).To(Succeed())

			mgr.Close(clientA)

			Expect(console.Writer).To(BeNil())
			Expect(console.Readers).To(ContainElement(logf))
			Expect(logf.Writer).To(Equal(console))
			Expect(reg.Lookup(object.ClientSocket, clientA.Name)).To(BeNil())
		})
	})
})

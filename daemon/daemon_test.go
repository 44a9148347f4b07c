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

var _ = Describe("Daemon console management", func() {
	var d *Daemon
	var logPath string

	BeforeEach(func() {
		d = New(filepath.Join(os.TempDir(), "consoled-test.cf"), 0, false, nil)
		logPath = filepath.Join(os.TempDir(), "consoled-test-c1.log")
		os.Remove(logPath)
	})

	AfterEach(func() {
		os.Remove(logPath)
	})

	It("opens an exec:// console and registers it", func() {
		d.openConsole(confdir.ConsoleConfig{Name: "c1", Dev: "exec:///bin/cat"})

		o := d.Reg.Lookup(object.Console, "c1")
		Expect(o).ToNot(BeNil())
		Expect(o.Active()).To(BeTrue())
	})

	It("attaches a LOG= log file to its console", func() {
		d.openConsole(confdir.ConsoleConfig{Name: "c1", Dev: "exec:///bin/cat", Log: logPath})

		console := d.Reg.Lookup(object.Console, "c1")
		Expect(console).ToNot(BeNil())

		logf := d.Reg.Lookup(object.LogFile, logPath)
		Expect(logf).ToNot(BeNil())
		Expect(logf.Writer).To(Equal(console))
		Expect(console.Readers).To(ContainElement(logf))
	})

	It("drops a console whose device fails to open, without registering it", func() {
		d.openConsole(confdir.ConsoleConfig{Name: "bad", Dev: "carrier-pigeon://nowhere"})
		Expect(d.Reg.Lookup(object.Console, "bad")).To(BeNil())
	})

	It("tears down a console on reload removal", func() {
		d.openConsole(confdir.ConsoleConfig{Name: "c1", Dev: "exec:///bin/cat"})
		console := d.Reg.Lookup(object.Console, "c1")
		Expect(console.Active()).To(BeTrue())

		d.teardownConsole("c1")
		Expect(console.Active()).To(BeFalse())
	})

	It("reload adds new consoles and removes deleted ones, leaving unchanged ones alone", func() {
		d.openConsole(confdir.ConsoleConfig{Name: "keep", Dev: "exec:///bin/cat"})
		d.openConsole(confdir.ConsoleConfig{Name: "gone", Dev: "exec:///bin/cat"})
		d.cfg = &confdir.Config{Consoles: []confdir.ConsoleConfig{
			{Name: "keep", Dev: "exec:///bin/cat"},
			{Name: "gone", Dev: "exec:///bin/cat"},
		}}

		keep := d.Reg.Lookup(object.Console, "keep")
		Expect(keep.Active()).To(BeTrue())

		cf, err := os.Create(d.ConfigPath)
		Expect(err).ToNot(HaveOccurred())
		_, err = cf.WriteString("CONSOLE NAME=\"keep\" DEV=\"exec:///bin/cat\"\nCONSOLE NAME=\"new\" DEV=\"exec:///bin/cat\"\n")
		Expect(err).ToNot(HaveOccurred())
		cf.Close()
		defer os.Remove(d.ConfigPath)

		d.reload()

		Expect(keep.Active()).To(BeTrue(), "unchanged console must be left alone")
		gone := d.Reg.Lookup(object.Console, "gone")
		Expect(gone.Active()).To(BeFalse())

		// The new console's open was submitted to the pool rather than
		// performed inline; drain it until the registration lands.
		Eventually(func() *object.Object {
			d.pool.drain(d)
			return d.Reg.Lookup(object.Console, "new")
		}).ShouldNot(BeNil())
		Expect(d.Reg.Lookup(object.Console, "new").Active()).To(BeTrue())
	})
})

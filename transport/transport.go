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

// Package transport supplies the concrete object.Opener implementations
// named by a Console's device scheme: tty:// for a local serial line,
// telnet:// for a terminal-server socket, ipmi:// and exec:// for
// subprocess-backed consoles (spec.md §1's "external helper processes").
// The engine never speaks any of these protocols directly; it only ever
// sees the fd an Opener hands back (object.Opener doc comment).
package transport

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/sabouaram/consoled/errs"
	"github.com/sabouaram/consoled/object"
)

// Registry dispatches Open to the Opener registered for a device's URL
// scheme, so the daemon can support additional schemes by registering them
// without touching the dispatch logic.
type Registry struct {
	openers map[string]object.Opener
	log     *logrus.Logger
}

// NewRegistry returns a Registry pre-populated with tty://, telnet://,
// ipmi:// and exec://.
func NewRegistry(log *logrus.Logger) *Registry {
	r := &Registry{openers: map[string]object.Opener{}, log: log}
	r.Register("tty", TTY{Log: log})
	r.Register("telnet", Telnet{Log: log})
	r.Register("ipmi", IPMI{Log: log})
	r.Register("exec", Exec{Log: log})
	return r
}

// Register installs (or replaces) the Opener for scheme.
func (r *Registry) Register(scheme string, o object.Opener) {
	r.openers[scheme] = o
}

// Open implements object.Opener by parsing o.Device as a URL and dispatching
// on its scheme.
func (r *Registry) Open(o *object.Object) (int, error) {
	u, err := url.Parse(o.Device)
	if err != nil {
		return -1, errs.New(errs.OpenFailed, "transport.open", o.Name, err)
	}
	op, ok := r.openers[u.Scheme]
	if !ok {
		return -1, errs.New(errs.OpenFailed, "transport.open", o.Name, fmt.Errorf("unknown device scheme %q", u.Scheme))
	}
	return op.Open(o)
}

// TTY opens a local serial device: raw open(2) with O_NONBLOCK, baud and
// framing applied via termios ioctls, with an optional reset program run
// first.
type TTY struct{ Log *logrus.Logger }

func (t TTY) Open(o *object.Object) (int, error) {
	path := strings.TrimPrefix(o.Device, "tty://")

	if o.Reset != "" {
		if err := exec.Command(o.Reset, path).Run(); err != nil {
			return -1, fmt.Errorf("reset program %q: %w", o.Reset, err)
		}
	}

	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK, 0)
	if err != nil {
		return -1, err
	}

	if err := applyTermios(fd, o.Baud); err != nil {
		unix.Close(fd)
		return -1, err
	}
	if t.Log != nil {
		t.Log.WithFields(logrus.Fields{"console": o.Name, "device": path, "baud": o.Baud}).Debug("transport: tty opened")
	}
	return fd, nil
}

// applyTermios configures raw 8N1 framing at the requested baud. Per Open
// Question (b), the baud-rate validation set is left essentially
// permissive (spec's source comments FIX_ME on this point); for any rate
// outside baudRates the speed already in the device's termios is left
// unchanged and no error is reported.
func applyTermios(fd int, baud int) error {
	t, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return err
	}

	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	t.Cflag &^= unix.CSIZE | unix.PARENB
	t.Cflag |= unix.CS8 | unix.CREAD | unix.CLOCAL
	t.Cc[unix.VMIN] = 1
	t.Cc[unix.VTIME] = 0

	if rate, ok := baudRates[baud]; ok {
		t.Cflag = t.Cflag&^unix.CBAUD | rate
		t.Ispeed = rate
		t.Ospeed = rate
	}

	return unix.IoctlSetTermios(fd, unix.TCSETS, t)
}

var baudRates = map[int]uint32{
	1200:   unix.B1200,
	2400:   unix.B2400,
	4800:   unix.B4800,
	9600:   unix.B9600,
	19200:  unix.B19200,
	38400:  unix.B38400,
	57600:  unix.B57600,
	115200: unix.B115200,
}

// Telnet dials a terminal-server socket. IAC negotiation bytes from the
// server are not interpreted: package control only parses bytes read from
// ClientSocket objects, so they reach the console's readers unchanged.
type Telnet struct {
	Log     *logrus.Logger
	Timeout time.Duration
}

func (t Telnet) Open(o *object.Object) (int, error) {
	hostport := strings.TrimPrefix(o.Device, "telnet://")
	timeout := t.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	conn, err := net.DialTimeout("tcp", hostport, timeout)
	if err != nil {
		return -1, err
	}
	tcp, ok := conn.(*net.TCPConn)
	if !ok {
		conn.Close()
		return -1, fmt.Errorf("unexpected connection type %T", conn)
	}
	f, err := tcp.File()
	conn.Close() // File() dup'd the fd; drop the net.Conn's own copy.
	if err != nil {
		return -1, err
	}
	// Dup once more and close f immediately: an *os.File left to the
	// garbage collector finalizes by closing its fd, which would yank the
	// fd out from under the engine at an arbitrary later time.
	fd, err := unix.Dup(int(f.Fd()))
	f.Close()
	if err != nil {
		return -1, err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, err
	}
	if t.Log != nil {
		t.Log.WithFields(logrus.Fields{"console": o.Name, "addr": hostport}).Debug("transport: telnet dialed")
	}
	return fd, nil
}

// IPMI dials Serial-Over-LAN by shelling out to an ipmitool-shaped helper
// and adopting its stdio pipes as the object's fd (spec.md §1's "IPMI
// Serial-Over-LAN channels"). It is a thin specialization of Exec with the
// helper command fixed by convention.
type IPMI struct{ Log *logrus.Logger }

func (i IPMI) Open(o *object.Object) (int, error) {
	host := strings.TrimPrefix(o.Device, "ipmi://")
	e := Exec{Log: i.Log, Command: "ipmitool", Args: []string{"-I", "lanplus", "-H", host, "sol", "activate"}}
	return e.Open(o)
}

// Exec runs an arbitrary helper process and adopts its combined stdin/stdout
// pipe as the console's fd (spec.md §1's "external helper processes"); it
// generalizes IPMI to any console whose device is a subprocess.
type Exec struct {
	Log     *logrus.Logger
	Command string
	Args    []string
}

func (e Exec) Open(o *object.Object) (int, error) {
	cmd, args := e.Command, e.Args
	if cmd == "" {
		cmd, args = parseExecDevice(o.Device)
	}

	// A helper process needs one fd that is both readable and writable, the
	// way a console's tty or telnet socket is; a socket pair gives the
	// child a combined stdin+stdout end without requiring a pty.
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return -1, err
	}
	ours, theirs := fds[0], fds[1]

	childEnd := os.NewFile(uintptr(theirs), "consoled-helper")
	c := exec.Command(cmd, args...)
	c.Stdin = childEnd
	c.Stdout = childEnd
	c.Stderr = childEnd
	if err := c.Start(); err != nil {
		childEnd.Close()
		unix.Close(ours)
		return -1, err
	}
	childEnd.Close() // the child holds its own dup; ours stays open.

	if err := unix.SetNonblock(ours, true); err != nil {
		unix.Close(ours)
		return -1, err
	}

	if e.Log != nil {
		e.Log.WithFields(logrus.Fields{"console": o.Name, "command": cmd}).Debug("transport: helper process started")
	}
	return ours, nil
}

func parseExecDevice(device string) (string, []string) {
	rest := strings.TrimPrefix(device, "exec://")
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return rest, nil
	}
	return fields[0], fields[1:]
}

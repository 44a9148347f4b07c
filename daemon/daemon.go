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

// Package daemon wires the object graph (registry, link manager, I/O
// engine), the transport and config-directive layers, and a client accept
// socket into the concentrator's run/reload/shutdown lifecycle (spec.md §6,
// §7 propagation policy).
package daemon

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/sabouaram/consoled/confdir"
	"github.com/sabouaram/consoled/control"
	"github.com/sabouaram/consoled/errs"
	"github.com/sabouaram/consoled/ioengine"
	"github.com/sabouaram/consoled/link"
	"github.com/sabouaram/consoled/object"
	"github.com/sabouaram/consoled/registry"
	"github.com/sabouaram/consoled/transport"
)

// Daemon owns every long-lived piece of the concentrator: the object graph,
// the transport Opener registry, the config watcher, the client accept
// socket, and the supervised engine loop.
type Daemon struct {
	ConfigPath string
	PortFlag   int // -p; 0 means "use the config file's SERVER PORT"
	Truncate   bool // -z
	Log        *logrus.Logger

	Reg       *registry.Registry
	Link      *link.Manager
	Engine    *ioengine.Engine
	Transport *transport.Registry

	sup      *Supervisor
	watcher  *confdir.Watcher
	listener net.Listener
	cfg      *confdir.Config
	pool     *openPool
}

// openPoolWidth bounds how many Opener.Open calls a live reload may run
// concurrently off the engine goroutine.
const openPoolWidth = 4

// New builds a Daemon with a fresh object graph; call Start to load the
// config and begin serving.
func New(configPath string, portFlag int, truncate bool, log *logrus.Logger) *Daemon {
	reg := registry.New()
	lm := link.New(reg, log)
	eng := ioengine.New(reg, lm, control.IAC{}, log)
	d := &Daemon{
		ConfigPath: configPath,
		PortFlag:   portFlag,
		Truncate:   truncate,
		Log:        log,
		Reg:        reg,
		Link:       lm,
		Engine:     eng,
		Transport:  transport.NewRegistry(log),
		pool:       newOpenPool(openPoolWidth),
	}
	d.sup = NewSupervisor(d.run, d.shutdown)
	return d
}

// Start loads the config, opens every configured console (and its optional
// log file), binds the client accept socket, starts watching the config
// file for live reload, and launches the engine loop. It returns once
// everything is wired; the engine loop itself runs on its own goroutine via
// the embedded Supervisor.
func (d *Daemon) Start(ctx context.Context) error {
	cfg, err := d.loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: %v\n", err)
	}
	if cfg == nil {
		return errs.New(errs.Config, "daemon.start", d.ConfigPath, err)
	}
	d.cfg = cfg
	d.applyConsoles(cfg.Consoles)

	port := cfg.Server.Port
	if d.PortFlag != 0 {
		port = d.PortFlag
	}
	ln, err := net.Listen("tcp", net.JoinHostPort(d.loopbackAddr(cfg), strconv.Itoa(port)))
	if err != nil {
		return errs.New(errs.OpenFailed, "daemon.listen", strconv.Itoa(port), err)
	}
	d.listener = ln

	w, err := confdir.Watch(d.ConfigPath, d.Log)
	if err != nil && d.Log != nil {
		d.Log.WithError(err).Warn("daemon: config watch unavailable, live reload disabled")
	}
	d.watcher = w

	go d.acceptLoop()
	return d.sup.Start(ctx)
}

// Stop tells the supervisor to cancel the engine loop and waits for
// shutdown to complete (listener and watcher torn down, consoles left
// untouched since they outlive any single daemon run only conceptually —
// the process is exiting).
func (d *Daemon) Stop(ctx context.Context) error {
	return d.sup.Stop(ctx)
}

// Uptime reports how long the engine loop has been running.
func (d *Daemon) Uptime() time.Duration { return d.sup.Uptime() }

// IsRunning reports whether the engine loop is active.
func (d *Daemon) IsRunning() bool { return d.sup.IsRunning() }

func (d *Daemon) loopbackAddr(cfg *confdir.Config) string {
	if cfg.Server.Loopback {
		return "127.0.0.1"
	}
	return ""
}

func (d *Daemon) loadConfig() (*confdir.Config, error) {
	f, err := os.Open(d.ConfigPath)
	if err != nil {
		return nil, errs.New(errs.Config, "daemon.load_config", d.ConfigPath, err)
	}
	defer f.Close()
	return confdir.Parse(d.ConfigPath, f)
}

// applyConsoles opens and registers every console named by cfgs, attaching
// its optional log file. A console that fails to open is dropped with a
// WARNING (spec.md §7's startup propagation policy); it never aborts the
// whole config.
func (d *Daemon) applyConsoles(cfgs []confdir.ConsoleConfig) {
	for _, c := range cfgs {
		d.openConsole(c)
	}
}

func (d *Daemon) openConsole(c confdir.ConsoleConfig) {
	console := object.NewConsole(c.Name, c.Dev, c.Bps, "", d.Log)
	if err := object.Open(console, d.Transport, d.Truncate); err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: console %q failed to open: %v\n", c.Name, err)
		return
	}
	if err := d.Reg.Insert(console); err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: console %q: %v\n", c.Name, err)
		return
	}

	if c.Log == "" {
		return
	}
	logf := object.NewLogFile(c.Log, d.Log)
	if err := d.Reg.Insert(logf); err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: log file %q: %v\n", c.Log, err)
		return
	}
	if err := d.Link.Attach(console, logf, d.Transport, d.Truncate); err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: could not attach log file %q to console %q: %v\n", c.Log, c.Name, err)
	}
}

// teardownConsole closes a console (and, by cascade, its now-orphaned log
// file) that a live reload no longer names.
func (d *Daemon) teardownConsole(name string) {
	if o := d.Reg.Lookup(object.Console, name); o != nil {
		d.Link.Close(o)
	}
}

// reload re-parses the config file and applies the diff: directives for
// consoles no longer present are closed immediately, directives for new
// consoles are submitted to the open pool (their registration completes
// asynchronously via finishOpen once Open returns), and unchanged consoles
// are left alone (spec.md §4.7).
func (d *Daemon) reload() {
	cfg, err := d.loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: config reload: %v\n", err)
		return
	}
	added, removed := confdir.Diff(d.cfg, cfg)
	for _, c := range removed {
		d.teardownConsole(c.Name)
	}
	for _, c := range added {
		d.pool.submit(d, c)
	}
	d.cfg = cfg
}

// finishOpen applies one openPool result on the engine goroutine: a failed
// open is reported as a WARNING and dropped (spec.md §7's startup
// propagation policy applies equally to a reload-triggered open); a
// successful one is registered and, if the directive carried LOG=, has its
// log file created and attached.
func (d *Daemon) finishOpen(r openResult) {
	if r.err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: console %q failed to open: %v\n", r.cfg.Name, r.err)
		return
	}
	if err := d.Reg.Insert(r.object); err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: console %q: %v\n", r.cfg.Name, err)
		return
	}
	if r.cfg.Log == "" {
		return
	}
	logf := object.NewLogFile(r.cfg.Log, d.Log)
	if err := d.Reg.Insert(logf); err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: log file %q: %v\n", r.cfg.Log, err)
		return
	}
	if err := d.Link.Attach(r.object, logf, d.Transport, d.Truncate); err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: could not attach log file %q to console %q: %v\n", r.cfg.Log, r.cfg.Name, err)
	}
}

// run is the Supervisor's start function: the engine loop proper.
func (d *Daemon) run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if d.watcher != nil {
			select {
			case <-d.watcher.Reloaded:
				d.reload()
			default:
			}
		}
		d.pool.drain(d)
		if _, err := d.Engine.Tick(); err != nil {
			if d.Log != nil {
				d.Log.WithError(err).Error("daemon: fatal I/O error, shutting down")
			}
			return err
		}
	}
}

// shutdown is the Supervisor's stop function: it releases the accept
// socket and config watcher.
func (d *Daemon) shutdown(ctx context.Context) error {
	if d.listener != nil {
		_ = d.listener.Close()
	}
	if d.watcher != nil {
		_ = d.watcher.Close()
	}
	d.pool.close()
	return nil
}

// acceptLoop accepts client connections and admits each as a ClientSocket
// object (spec.md §6's client accept socket), honoring SERVER KEEPALIVE.
func (d *Daemon) acceptLoop() {
	for {
		conn, err := d.listener.Accept()
		if err != nil {
			return
		}
		d.admitClient(conn)
	}
}

func (d *Daemon) admitClient(conn net.Conn) {
	tcp, ok := conn.(*net.TCPConn)
	if !ok {
		conn.Close()
		return
	}
	if d.cfg != nil {
		_ = tcp.SetKeepAlive(d.cfg.Server.Keepalive)
	}

	f, err := tcp.File()
	conn.Close()
	if err != nil {
		return
	}
	fd, err := unix.Dup(int(f.Fd()))
	f.Close()
	if err != nil {
		return
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return
	}

	host, _, _ := net.SplitHostPort(tcp.RemoteAddr().String())
	client, err := object.NewClient("client", host, fd, nil, d.Log)
	if err != nil {
		unix.Close(fd)
		return
	}
	if err := d.Reg.Insert(client); err != nil {
		unix.Close(fd)
		return
	}
	if d.Log != nil {
		d.Log.WithFields(logrus.Fields{"client": client.Name}).Info("daemon: client connected")
	}
}

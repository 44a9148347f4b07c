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

// Command consoled is the serial-console concentrator daemon: it loads a
// directive file naming consoles and a listen port, then multiplexes every
// console's byte stream to its log file and attached clients (spec.md §1).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"github.com/sabouaram/consoled/daemon"
)

// version is stamped by -ldflags at build time; left as a default for
// local/dev builds.
var version = "dev"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("consoled", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: consoled [-c FILE] [-p PORT] [-k] [-v] [-V] [-z]")
		fs.PrintDefaults()
	}

	configPath := fs.StringP("config", "c", "/etc/consoled.cf", "directive file path")
	kill := fs.BoolP("kill", "k", false, "signal the daemon holding the config file's lock and exit")
	port := fs.IntP("port", "p", 0, "override the listen port (0: use the config file's SERVER PORT)")
	verbose := fs.BoolP("verbose", "v", false, "enable debug logging")
	showVersion := fs.BoolP("version", "V", false, "print the version and exit")
	truncate := fs.BoolP("zero", "z", false, "truncate existing log files on open")

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}

	if *showVersion {
		fmt.Printf("consoled-%s\n", version)
		return 0
	}

	log := logrus.New()
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	if *kill {
		return killHolder(*configPath, *verbose)
	}

	lock := flock.New(*configPath)
	locked, err := lock.TryRLock()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: could not lock %s: %v\n", *configPath, err)
		return 1
	}
	if !locked {
		fmt.Fprintf(os.Stderr, "ERROR: %s is locked by another instance\n", *configPath)
		return 1
	}
	defer lock.Unlock()

	d := daemon.New(*configPath, *port, *truncate, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		return 1
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)

	for s := range sig {
		switch s {
		case syscall.SIGHUP:
			log.Info("consoled: SIGHUP received, reload is handled by the config watcher")
		default:
			log.WithField("signal", s.String()).Info("consoled: shutting down")
			_ = d.Stop(ctx)
			return 0
		}
	}
	return 0
}

// killHolder finds the pid holding the config file's advisory lock and
// sends it SIGTERM (spec.md §6's -k flag).
func killHolder(configPath string, verbose bool) int {
	pid, err := lockHolderPID(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: could not determine lock holder for %s: %v\n", configPath, err)
		return 1
	}
	if pid == 0 {
		fmt.Fprintf(os.Stderr, "ERROR: no process holds a lock on %s\n", configPath)
		return 1
	}
	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: signaling pid %d: %v\n", pid, err)
		return 1
	}
	if verbose {
		fmt.Printf("consoled: signaled pid %d\n", pid)
	}
	return 0
}

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

// Package confdir parses the daemon's directive file (spec.md §6): a
// line-oriented, `#`-commented, quoted-string, backslash-continued grammar
// of SERVER and CONSOLE directives. A bad directive is reported and the
// parser resynchronizes at the next newline rather than aborting the whole
// file (spec.md §7's "per-directive Config errors are reported ... they do
// not abort startup unless no valid object remains").
package confdir

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/sabouaram/consoled/errs"
)

// ServerConfig holds the daemon-wide SERVER directives.
type ServerConfig struct {
	Port      int
	Keepalive bool
	Loopback  bool
	Logfile   string // reserved: parsed, not yet implemented (Open Question c)
	Pidfile   string
	Timestamp string // reserved: parsed, not yet implemented (Open Question c)
}

// ConsoleConfig holds one CONSOLE directive. Log is empty when the
// directive carried no LOG= clause.
type ConsoleConfig struct {
	Name string
	Dev  string
	Log  string
	Bps  int
}

// Config is the result of a successful (possibly partial) parse.
type Config struct {
	Server   ServerConfig
	Consoles []ConsoleConfig
}

// DefaultServer mirrors spec.md §6's stated defaults for directives the
// file may omit.
func DefaultServer() ServerConfig {
	return ServerConfig{Port: 7878, Keepalive: true, Loopback: false}
}

// Parse reads directives from r (conceptually the file named filename,
// used only to annotate error messages) and returns the resulting Config.
// A non-nil error is always a *multierror.Error of *errs.Error values, one
// per rejected directive; the caller decides (per spec.md §7) whether any
// valid object remains worth starting with.
func Parse(filename string, r io.Reader) (*Config, error) {
	cfg := &Config{Server: DefaultServer()}
	var errAcc *multierror.Error

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)

	lineNo := 0
	var pending strings.Builder
	pendingStart := 0

	flush := func(text string, startLine int) {
		if err := applyDirective(cfg, text); err != nil {
			errAcc = multierror.Append(errAcc, directiveErr(filename, startLine, err))
		}
	}

	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()

		if idx := findComment(raw); idx >= 0 {
			raw = raw[:idx]
		}
		trimmed := strings.TrimRight(raw, " \t\r")

		if pending.Len() == 0 {
			pendingStart = lineNo
		}

		if strings.HasSuffix(trimmed, "\\") {
			pending.WriteString(strings.TrimSuffix(trimmed, "\\"))
			pending.WriteByte(' ')
			continue
		}

		pending.WriteString(trimmed)
		text := strings.TrimSpace(pending.String())
		pending.Reset()

		if text == "" {
			continue
		}
		flush(text, pendingStart)
	}
	if pending.Len() > 0 {
		if text := strings.TrimSpace(pending.String()); text != "" {
			flush(text, pendingStart)
		}
	}
	if err := scanner.Err(); err != nil {
		errAcc = multierror.Append(errAcc, directiveErr(filename, lineNo, err))
	}

	if errAcc != nil {
		return cfg, errAcc.ErrorOrNil()
	}
	return cfg, nil
}

func directiveErr(filename string, line int, cause error) error {
	return errs.New(errs.Config, "confdir.parse", fmt.Sprintf("%s:%d", filename, line), cause)
}

func findComment(line string) int {
	inQuote := false
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '"':
			inQuote = !inQuote
		case '#':
			if !inQuote {
				return i
			}
		}
	}
	return -1
}

func applyDirective(cfg *Config, text string) error {
	fields, err := tokenize(text)
	if err != nil {
		return err
	}
	if len(fields) == 0 {
		return nil
	}

	keyword := strings.ToUpper(fields[0])
	args := fields[1:]

	switch keyword {
	case "SERVER":
		return applyServer(&cfg.Server, args)
	case "CONSOLE":
		c, err := applyConsole(args)
		if err != nil {
			return err
		}
		cfg.Consoles = append(cfg.Consoles, c)
		return nil
	default:
		return fmt.Errorf("unknown directive %q", fields[0])
	}
}

// tokenize splits on whitespace but keeps double-quoted spans (with
// backslash escapes for `"` and `\`) as single tokens.
func tokenize(text string) ([]string, error) {
	var out []string
	var cur strings.Builder
	inQuote := false
	haveToken := false

	flush := func() {
		if haveToken {
			out = append(out, cur.String())
			cur.Reset()
			haveToken = false
		}
	}

	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c == '"':
			inQuote = !inQuote
			haveToken = true
		case c == '\\' && inQuote && i+1 < len(text):
			i++
			cur.WriteByte(text[i])
			haveToken = true
		case c == ' ' || c == '\t':
			if inQuote {
				cur.WriteByte(c)
			} else {
				flush()
			}
		default:
			cur.WriteByte(c)
			haveToken = true
		}
	}
	if inQuote {
		return nil, fmt.Errorf("unterminated quoted string")
	}
	flush()
	return out, nil
}

func applyServer(s *ServerConfig, args []string) error {
	for _, a := range args {
		key, val, ok := splitKV(a)
		if !ok {
			return fmt.Errorf("malformed SERVER clause %q", a)
		}
		switch strings.ToUpper(key) {
		case "PORT":
			n, err := strconv.Atoi(val)
			if err != nil {
				return fmt.Errorf("invalid PORT %q: %w", val, err)
			}
			s.Port = n
		case "KEEPALIVE":
			on, err := onOff(val)
			if err != nil {
				return err
			}
			s.Keepalive = on
		case "LOOPBACK":
			on, err := onOff(val)
			if err != nil {
				return err
			}
			s.Loopback = on
		case "LOGFILE":
			s.Logfile = val
		case "PIDFILE":
			s.Pidfile = val
		case "TIMESTAMP":
			s.Timestamp = val
		default:
			return fmt.Errorf("unknown SERVER clause %q", key)
		}
	}
	return nil
}

func applyConsole(args []string) (ConsoleConfig, error) {
	var c ConsoleConfig
	haveName, haveDev := false, false
	for _, a := range args {
		key, val, ok := splitKV(a)
		if !ok {
			return c, fmt.Errorf("malformed CONSOLE clause %q", a)
		}
		switch strings.ToUpper(key) {
		case "NAME":
			c.Name = val
			haveName = true
		case "DEV":
			c.Dev = val
			haveDev = true
		case "LOG":
			c.Log = val
		case "BPS":
			n, err := strconv.Atoi(val)
			if err != nil {
				return c, fmt.Errorf("invalid BPS %q: %w", val, err)
			}
			c.Bps = n
		default:
			return c, fmt.Errorf("unknown CONSOLE clause %q", key)
		}
	}
	if !haveName {
		return c, fmt.Errorf("CONSOLE directive missing NAME=")
	}
	if !haveDev {
		return c, fmt.Errorf("CONSOLE %q missing DEV=", c.Name)
	}
	return c, nil
}

func splitKV(s string) (key, val string, ok bool) {
	i := strings.IndexByte(s, '=')
	if i < 0 {
		return "", "", false
	}
	return s[:i], s[i+1:], true
}

func onOff(s string) (bool, error) {
	switch strings.ToUpper(s) {
	case "ON":
		return true, nil
	case "OFF":
		return false, nil
	default:
		return false, fmt.Errorf("expected ON or OFF, got %q", s)
	}
}

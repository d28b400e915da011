package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"golang.org/x/term"

	"github.com/freitascorp/sheriff/pkg/bus"
	"github.com/freitascorp/sheriff/pkg/model"
	"github.com/freitascorp/sheriff/pkg/reconcile"
	"github.com/freitascorp/sheriff/pkg/sheriff"
	"github.com/freitascorp/sheriff/pkg/wire"
)

// console bundles the live collaborators console commands act on: the
// Sheriff façade plus the bus, so an operator-issued mode change can be
// announced to any other sheriff listening on the sheriff-cmd channel,
// the same way the original's interactive "echo"/"good_morning" commands
// announced themselves to the fleet.
type console struct {
	s    *sheriff.Sheriff
	b    bus.Bus
	name string
}

// consoleWidth reports the current terminal width, the same way the
// teacher's pkg/tui sizes itself, falling back to a sane default when
// stdout isn't a TTY (piped output, CI logs).
func consoleWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return 80
	}
	return w
}

// runConsole is the interactive fallback when no script_name is given
// and --dashboard isn't set: a readline-based console for issuing
// start/stop/restart/status against the live Model, grounded on the
// teacher's interactiveModeReadline/simpleInteractiveMode pair.
func runConsole(ctx context.Context, s *sheriff.Sheriff, b bus.Bus, name string, logger *slog.Logger) error {
	c := &console{s: s, b: b, name: name}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "sheriff> ",
		HistoryFile:     filepath.Join(os.TempDir(), ".sheriff_history"),
		HistoryLimit:    500,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		logger.Warn("console: readline init failed, using simple mode", "error", err)
		return c.runSimple(ctx)
	}
	defer rl.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				return nil
			}
			fmt.Println(err)
			continue
		}
		if c.handleLine(ctx, strings.TrimSpace(line)) {
			return nil
		}
	}
}

func (c *console) runSimple(ctx context.Context) error {
	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("sheriff> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return nil
			}
			fmt.Println(err)
			continue
		}
		if c.handleLine(ctx, strings.TrimSpace(line)) {
			return nil
		}
	}
}

// handleLine executes one console command and reports whether the
// console should exit.
func (c *console) handleLine(ctx context.Context, line string) (exit bool) {
	if line == "" {
		return false
	}
	fields := strings.Fields(line)
	switch fields[0] {
	case "exit", "quit":
		return true
	case "status":
		printStatus(c.s.Model)
	case "start", "stop", "restart":
		if len(fields) < 2 {
			fmt.Println("usage:", fields[0], "<nickname>")
			return false
		}
		applyConsoleAction(c.s, fields[0], fields[1])
	case "observer":
		c.s.SetObserver(true)
		c.announceMode(ctx, "observer")
	case "active":
		c.s.SetObserver(false)
		c.announceMode(ctx, "active")
	case "help":
		fmt.Println("commands: status, start <nickname>, stop <nickname>, restart <nickname>, observer, active, exit")
	default:
		fmt.Printf("unrecognized command %q (try 'help')\n", fields[0])
	}
	return false
}

// announceMode broadcasts the operator-driven mode change over the
// sheriff-cmd channel so any other sheriff instance watching it (e.g. an
// HA peer) sees the transition immediately rather than only inferring it
// from the next orders message's absence.
func (c *console) announceMode(ctx context.Context, mode string) {
	if c.b == nil {
		return
	}
	payload, err := wire.EncodeSheriffCmd(wire.SheriffCmd{
		UTime:       time.Now().UnixMicro(),
		SheriffName: c.name,
		Command:     "mode:" + mode,
	})
	if err != nil {
		return
	}
	_ = c.b.Publish(ctx, sheriffCmdChannel, payload)
}

func applyConsoleAction(s *sheriff.Sheriff, action, nickname string) {
	for _, d := range s.Model.AllDeputies() {
		for _, c := range d.Commands() {
			if c.Nickname != nickname {
				continue
			}
			var err error
			switch action {
			case "start":
				err = s.Reconcile.Start(c)
			case "stop":
				err = s.Reconcile.Stop(c)
			case "restart":
				err = s.Reconcile.Restart(c)
			}
			if err != nil {
				fmt.Println(err)
				return
			}
			s.Publish.Trigger()
			return
		}
	}
	fmt.Printf("no such command %q\n", nickname)
}

func printStatus(m *model.Model) {
	mode := "active"
	if m.IsObserver() {
		mode = "observer"
	}
	fmt.Printf("mode: %s\n", mode)
	fmt.Println(strings.Repeat("-", consoleWidth()))
	for _, d := range m.AllDeputies() {
		for _, c := range d.Commands() {
			fmt.Printf("  %-20s %-20s %s\n", d.Name, c.Nickname, reconcile.Status(c))
		}
	}
}

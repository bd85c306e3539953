// Package console is the interactive front end: typed lines are written to
// the dongle, slash commands drive the session, and the status log is the
// output.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/chaz8081/ble-dongle/internal/session"
)

// Controller is the subset of *session.Session the console drives.
type Controller interface {
	Enable() error
	Connect(ctx context.Context) error
	Write(ctx context.Context, text string) error
	Read(ctx context.Context) (string, error)
	Disconnect() error
	State() session.State
}

// HelpText lists the console commands.
const HelpText = `Commands:
  /connect     request a device and connect
  /read        read the characteristic once
  /beep        write a random intensity between 0.40 and 1.00
  /disconnect  close the connection
  /status      show the session state
  /help        show this help
  /quit        exit
Any other line is written to the dongle. Start a line with "//" to send a leading "/".
When Bluetooth is unavailable /connect does nothing; the startup warning is the only notice.`

// Console reads lines from in and dispatches them to a Controller.
type Console struct {
	ctl    Controller
	in     io.Reader
	status session.StatusLog

	// intensity picks the /beep value.
	intensity func() float64

	wg sync.WaitGroup
}

func randomIntensity() float64 {
	return 0.4 + rand.Float64()*0.6
}

// New creates a Console.
func New(ctl Controller, in io.Reader, status session.StatusLog) *Console {
	return &Console{ctl: ctl, in: in, status: status, intensity: randomIntensity}
}

// Run enables the adapter, then handles input until /quit, EOF or ctx is
// done. In-flight commands are waited for before Run returns.
func (c *Console) Run(ctx context.Context) error {
	defer c.wg.Wait()

	available := c.ctl.Enable() == nil

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			return err
		case line := <-lines:
			if quit := c.handle(ctx, line, available); quit {
				return nil
			}
		}
	}
}

// handle dispatches one line and reports whether the console should exit.
// Session operations run on their own goroutine so rapid input can overlap,
// which the session's busy guard resolves by skipping.
func (c *Console) handle(ctx context.Context, line string, available bool) bool {
	line = strings.TrimRight(line, "\r")
	cmd := strings.TrimSpace(line)

	switch {
	case cmd == "":
		return false
	case cmd == "/quit" || cmd == "/exit":
		return true
	case cmd == "/help":
		c.status.Print(HelpText)
	case cmd == "/status":
		c.status.Print("State: " + c.ctl.State().String())
	case cmd == "/connect":
		if !available {
			slog.Warn("[BLE] connect unavailable: adapter could not be enabled")
			return false
		}
		c.spawn(func() error { return c.ctl.Connect(ctx) })
	case cmd == "/read":
		c.spawn(func() error {
			_, err := c.ctl.Read(ctx)
			return err
		})
	case cmd == "/beep":
		text := fmt.Sprintf("%.2f", c.intensity())
		c.spawn(func() error { return c.ctl.Write(ctx, text) })
	case cmd == "/disconnect":
		c.spawn(c.ctl.Disconnect)
	case strings.HasPrefix(cmd, "//"):
		text := line[strings.Index(line, "/")+1:]
		c.spawn(func() error { return c.ctl.Write(ctx, text) })
	case strings.HasPrefix(cmd, "/"):
		c.status.Warn("Unknown command " + strings.Fields(cmd)[0] + ", try /help")
	default:
		c.spawn(func() error { return c.ctl.Write(ctx, line) })
	}
	return false
}

func (c *Console) spawn(op func() error) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := op(); err != nil {
			// Already on the status log; keep a diagnostic trail.
			slog.Debug("[BLE] console command failed", "error", err)
		}
	}()
}

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/c360/alusync/panel"
)

const commandHelp = `  set <pin> <0|1>   drive an input pin
  toggle <pin>      flip an input pin
  show              print the panel
  sync              ask the hub to push its state again
  ping              check the hub answers
  quit              exit
`

// console interprets panel commands read line by line.
type console struct {
	panel *panel.Panel
	ping  func(context.Context) (string, error)
	out   io.Writer
}

// run reads commands until EOF, quit or ctx is done.
func (c *console) run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	errc := make(chan error, 1)
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-stop:
				return
			}
		}
		errc <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errc:
			return err
		case line := <-lines:
			if quit := c.exec(ctx, line); quit {
				return nil
			}
		}
	}
}

// exec runs one command and reports whether the console should stop.
// Command errors are printed, never returned.
func (c *console) exec(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	var err error
	switch cmd := strings.ToLower(fields[0]); cmd {
	case "set":
		if len(fields) != 3 {
			err = fmt.Errorf("usage: set <pin> <0|1>")
			break
		}
		var on bool
		on, err = parseLevel(fields[2])
		if err == nil {
			err = c.panel.Set(ctx, fields[1], on)
		}
	case "toggle":
		if len(fields) != 2 {
			err = fmt.Errorf("usage: toggle <pin>")
			break
		}
		err = c.panel.Toggle(ctx, fields[1])
	case "show":
		_, _ = fmt.Fprint(c.out, c.panel.Render())
	case "sync":
		err = c.panel.Sync(ctx)
	case "ping":
		var reply string
		reply, err = c.ping(ctx)
		if err == nil {
			_, _ = fmt.Fprintf(c.out, "hub: %s\n", reply)
		}
	case "quit", "exit":
		return true
	case "help":
		_, _ = fmt.Fprint(c.out, commandHelp)
	default:
		err = fmt.Errorf("unknown command %q, try help", cmd)
	}

	if err != nil {
		_, _ = fmt.Fprintf(c.out, "error: %v\n", err)
	}
	return false
}

func parseLevel(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "1", "on", "high", "true":
		return true, nil
	case "0", "off", "low", "false":
		return false, nil
	}
	return false, fmt.Errorf("level %q: want 0 or 1", s)
}

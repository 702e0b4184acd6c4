package server

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/zeusync/zeusnet/internal/core/observability/log"
)

type consoleCommand struct {
	name  string
	usage string
	args  int
	run   func(args []string) error
}

// Console runs admin commands typed on the server terminal.
type Console struct {
	server   *Server
	out      io.Writer
	commands []consoleCommand
}

func NewConsole(s *Server, out io.Writer) *Console {
	c := &Console{server: s, out: out}
	c.commands = []consoleCommand{
		{name: "help", usage: "help", run: c.help},
		{name: "games", usage: "games", run: c.games},
		{name: "add", usage: "add <game>", args: 1, run: c.add},
		{name: "update", usage: "update <game>", args: 1, run: c.update},
		{name: "remove", usage: "remove <game>", args: 1, run: c.remove},
		{name: "instances", usage: "instances <game>", args: 1, run: c.instances},
		{name: "clients", usage: "clients", run: c.clients},
		{name: "quit", usage: "quit", run: c.quit},
	}
	return c
}

// Run reads commands line by line until r is exhausted or ctx is done.
func (c *Console) Run(ctx context.Context, r io.Reader) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if err := c.Execute(line); err != nil {
				fmt.Fprintf(c.out, "error: %v\n", err)
			}
		}
	}
}

// Execute runs one command line. Blank lines are ignored.
func (c *Console) Execute(line string) error {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return nil
	}

	for _, cmd := range c.commands {
		if cmd.name != parts[0] {
			continue
		}
		if len(parts)-1 != cmd.args {
			return fmt.Errorf("usage: %s", cmd.usage)
		}
		c.server.logger.Debug("Console command", log.String("command", line))
		return cmd.run(parts[1:])
	}
	return fmt.Errorf("%w: %s", ErrUnknownCommand, parts[0])
}

func (c *Console) help([]string) error {
	for _, cmd := range c.commands {
		fmt.Fprintln(c.out, cmd.usage)
	}
	return nil
}

func (c *Console) games([]string) error {
	for _, gs := range c.server.Stats().Games {
		fmt.Fprintf(c.out, "%s instances=%d players=%d waiting=%d\n", gs.Name, gs.Instances, gs.Players, gs.Waiting)
	}
	return nil
}

func (c *Console) add(args []string) error {
	if err := c.server.games.AddGame(args[0]); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "game %s added\n", args[0])
	return nil
}

func (c *Console) update(args []string) error {
	if err := c.server.games.UpdateGame(args[0]); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "game %s updated\n", args[0])
	return nil
}

func (c *Console) remove(args []string) error {
	if err := c.server.games.RemoveGame(args[0]); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "game %s removed\n", args[0])
	return nil
}

func (c *Console) instances(args []string) error {
	for _, inst := range c.server.games.Instances(args[0]) {
		fmt.Fprintf(c.out, "%s players=%d running=%t ticks=%d\n", inst.ID(), inst.PlayerCount(), inst.Running(), inst.Ticks())
	}
	return nil
}

func (c *Console) clients([]string) error {
	timeout := c.server.sessions.Timeout()
	for _, client := range c.server.sessions.Clients() {
		fmt.Fprintf(c.out, "%s %s game=%q name=%q\n", client.Address(), client.State(timeout), client.Game(), client.Name())
	}
	return nil
}

func (c *Console) quit([]string) error {
	fmt.Fprintln(c.out, "stopping")
	c.server.requestStop()
	return nil
}

// Package repl is an interactive shell for evaluating tag expressions.
package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/duynguyendang/blockbaker/pkg/service"
)

// Config holds configuration for the REPL environment.
type Config struct {
	// Project is the library the session works on.
	Project string
	// Prompt is printed before every line.
	Prompt string
	// Limit caps how many blocks are printed per result; 0 prints all.
	Limit int
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		Project: "default",
		Prompt:  "> ",
		Limit:   50,
	}
}

// Session reads commands from in and writes results to out.
type Session struct {
	cfg     Config
	catalog *service.CatalogService
	in      io.Reader
	out     io.Writer
}

// NewSession creates a session.
func NewSession(cfg Config, catalog *service.CatalogService, in io.Reader, out io.Writer) *Session {
	if cfg.Prompt == "" {
		cfg.Prompt = DefaultConfig().Prompt
	}
	return &Session{cfg: cfg, catalog: catalog, in: in, out: out}
}

// Run starts the interactive REPL on in and out.
func Run(ctx context.Context, cfg Config, catalog *service.CatalogService, in io.Reader, out io.Writer) error {
	return NewSession(cfg, catalog, in, out).Run(ctx)
}

// Run processes lines until EOF, "exit", or ctx is done.
func (s *Session) Run(ctx context.Context) error {
	fmt.Fprintf(s.out, "\n--- BlockBaker (%s) ---\n", s.cfg.Project)
	fmt.Fprintln(s.out, "Enter tag expressions (e.g. stairs & material:wood). Type 'help' for commands, 'exit' to stop.")

	scanner := bufio.NewScanner(s.in)
	for {
		fmt.Fprint(s.out, s.cfg.Prompt)
		if !scanner.Scan() {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}
		s.Execute(ctx, line)
	}
	fmt.Fprintln(s.out)
	return scanner.Err()
}

// Execute runs one line: a command or an expression.
func (s *Session) Execute(ctx context.Context, line string) {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	if h, ok := commands[cmd]; ok {
		h.run(ctx, s, arg)
		return
	}
	s.evaluate(ctx, line)
}

func (s *Session) evaluate(ctx context.Context, expression string) {
	res, err := s.catalog.Query(ctx, s.cfg.Project, expression)
	if err != nil {
		fmt.Fprintf(s.out, "error: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "%s => %d blocks\n", res.Parsed, res.Count)
	s.printBlocks(res.Blocks)
}

func (s *Session) printBlocks(blocks []string) {
	shown := blocks
	if s.cfg.Limit > 0 && len(shown) > s.cfg.Limit {
		shown = shown[:s.cfg.Limit]
	}
	for _, b := range shown {
		fmt.Fprintf(s.out, "  %s\n", b)
	}
	if len(shown) < len(blocks) {
		fmt.Fprintf(s.out, "  ... and %d more\n", len(blocks)-len(shown))
	}
}

package repl

import (
	"context"
	"fmt"
	"sort"
)

type command struct {
	usage string
	help  string
	run   func(ctx context.Context, s *Session, arg string)
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"help":   {"help", "Show this help", handleHelp},
		"ls":     {"ls [glob]", "List tags, optionally filtered by a glob", handleList},
		"show":   {"show <tag>", "Show a tag's kind, blocks and values", handleShow},
		"verify": {"verify", "Report tags holding blocks their parent lacks", handleVerify},
	}
}

func handleHelp(_ context.Context, s *Session, _ string) {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c := commands[name]
		fmt.Fprintf(s.out, "  %-12s %s\n", c.usage, c.help)
	}
	fmt.Fprintln(s.out, "  <expression> Evaluate: tag, tag:value, [blocks], + - & ^ and parentheses")
}

func handleList(ctx context.Context, s *Session, glob string) {
	list, err := s.catalog.ListTags(ctx, s.cfg.Project, glob)
	if err != nil {
		fmt.Fprintf(s.out, "error: %v\n", err)
		return
	}
	for _, t := range list {
		fmt.Fprintf(s.out, "  %s (%s)\n", t.Path, t.Kind)
	}
	fmt.Fprintf(s.out, "%d tags\n", len(list))
}

// handleShow displays a tag.
func handleShow(ctx context.Context, s *Session, path string) {
	if path == "" {
		fmt.Fprintln(s.out, "Usage: show <tag>")
		return
	}
	info, err := s.catalog.DescribeTag(ctx, s.cfg.Project, path)
	if err != nil {
		fmt.Fprintf(s.out, "error: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "%s (%s)\n", info.Path, info.Kind)
	if len(info.Values) == 0 {
		s.printBlocks(info.Blocks)
		return
	}
	values := make([]string, 0, len(info.Values))
	for v := range info.Values {
		values = append(values, v)
	}
	sort.Strings(values)
	for _, v := range values {
		fmt.Fprintf(s.out, " %s: %d blocks\n", v, len(info.Values[v]))
		s.printBlocks(info.Values[v])
	}
}

func handleVerify(ctx context.Context, s *Session, _ string) {
	violations, err := s.catalog.Verify(ctx, s.cfg.Project)
	if err != nil {
		fmt.Fprintf(s.out, "error: %v\n", err)
		return
	}
	if len(violations) == 0 {
		fmt.Fprintln(s.out, "No violations found.")
		return
	}
	for _, v := range violations {
		fmt.Fprintf(s.out, "  %s\n", v)
	}
}

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mikey/llm-phish-guard/internal/core"
	"github.com/mikey/llm-phish-guard/internal/ports"
)

var errUsage = errors.New("invalid usage, run phish-guard -h for help")

// cli runs one subcommand against the analysis service
type cli struct {
	service       ports.AnalysisService
	in            io.Reader
	out           io.Writer
	jsonOutput    bool
	provider      string
	// settleTimeout bounds how long watch waits for a scheduled analysis
	settleTimeout time.Duration
}

func (c *cli) run(ctx context.Context, args []string) error {
	switch args[0] {
	case "analyze":
		return c.analyze(ctx, args[1:])
	case "watch":
		return c.watch(ctx)
	case "history":
		return c.history(ctx, args[1:])
	case "chat":
		return c.chat(ctx)
	default:
		return fmt.Errorf("unknown command %q: %w", args[0], errUsage)
	}
}

func (c *cli) analyze(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	fs.SetOutput(c.out)
	email := fs.Bool("email", false, "Analyze email content instead of a URL")
	mobile := fs.Bool("mobile", false, "Simulate a mobile device (URL only)")
	country := fs.String("country", "", "Simulate a request from this country code (URL only)")
	extractLinks := fs.Bool("extract-links", false, "Extract and analyze every link (email only)")
	file := fs.String("file", "", "Read content from this file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	content, err := c.readContent(*file, fs.Args())
	if err != nil {
		return err
	}

	kind := core.KindURL
	opts := core.Options{}
	if *email {
		kind = core.KindEmail
		opts.Email = &core.EmailOptions{ExtractAllLinks: *extractLinks}
	} else {
		mode := core.SimulationDesktop
		if *mobile {
			mode = core.SimulationMobile
		}
		opts.URL = &core.URLOptions{SimulationMode: mode, CountryCode: *country}
	}

	if !c.jsonOutput {
		fmt.Fprintf(c.out, "Analyzing %s with %s...\n", strings.ToLower(string(kind)), c.provider)
	}

	start := time.Now()
	result, err := c.service.Submit(ctx, kind, content, opts)
	if err != nil {
		return err
	}
	return c.printResult(result, time.Since(start))
}

func (c *cli) readContent(file string, args []string) (string, error) {
	switch {
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", file, err)
		}
		return string(data), nil
	case len(args) == 0 || (len(args) == 1 && args[0] == "-"):
		data, err := io.ReadAll(c.in)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	default:
		return strings.Join(args, " "), nil
	}
}

// watch feeds each input line to the debouncer as if it were typed into
// the URL field, printing every analysis that fires
func (c *cli) watch(ctx context.Context) error {
	states := make(chan core.State, 16)
	c.service.Subscribe(func(s core.State) {
		select {
		case states <- s:
		default:
		}
	})

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return c.awaitSettled(ctx, states)
			}
			content := strings.TrimSpace(line)
			scheduled := c.service.InputChanged(core.Input{
				Kind:    core.KindURL,
				Content: content,
				Options: core.Options{URL: &core.URLOptions{SimulationMode: core.SimulationDesktop}},
			})
			if !scheduled && !c.jsonOutput && content != "" {
				fmt.Fprintln(c.out, "(not URL-shaped yet, waiting for more input)")
			}
		case s := <-states:
			if err := c.printState(s); err != nil {
				return err
			}
		}
	}
}

// awaitSettled waits until no automatic analysis is armed or running, then
// prints whatever states are still queued
func (c *cli) awaitSettled(ctx context.Context, states <-chan core.State) error {
	timer := time.NewTimer(c.settleTimeout)
	defer timer.Stop()
	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()

	for c.service.AutoPending() {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
			return fmt.Errorf("no analysis result within %s", c.settleTimeout)
		case s := <-states:
			if err := c.printState(s); err != nil {
				return err
			}
		case <-tick.C:
		}
	}

	for {
		select {
		case s := <-states:
			if err := c.printState(s); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

func (c *cli) printState(s core.State) error {
	switch {
	case s.Loading:
		if !c.jsonOutput {
			fmt.Fprintln(c.out, "Analyzing...")
		}
	case s.Error != "":
		fmt.Fprintf(c.out, "Analysis failed: %s\n", s.Error)
	case s.Result != nil:
		return c.printResult(s.Result, 0)
	}
	return nil
}

func (c *cli) history(ctx context.Context, args []string) error {
	action := "list"
	if len(args) > 0 {
		action = args[0]
	}

	switch action {
	case "list":
		entries := c.service.History()
		if c.jsonOutput {
			return c.printJSON(entries)
		}
		if len(entries) == 0 {
			fmt.Fprintln(c.out, "No past analyses.")
			return nil
		}
		for _, e := range entries {
			fmt.Fprintf(c.out, "%s  %s  %-5s  %-10s %3d  %s\n",
				e.ID, e.CreatedAt.Local().Format(time.DateTime), e.Kind, e.Result.Verdict, e.Result.OverallScore, summarize(e.Content, 60))
		}
		return nil
	case "show":
		if len(args) != 2 {
			return errUsage
		}
		entry, err := c.service.SelectHistoryEntry(args[1])
		if err != nil {
			return err
		}
		if c.jsonOutput {
			return c.printJSON(entry)
		}
		fmt.Fprintf(c.out, "%s analysis from %s\n%s\n", entry.Kind, entry.CreatedAt.Local().Format(time.DateTime), summarize(entry.Content, 200))
		return c.printResult(&entry.Result, 0)
	case "clear":
		c.service.ClearHistory(ctx)
		if !c.jsonOutput {
			fmt.Fprintln(c.out, "History cleared.")
		}
		return nil
	default:
		return fmt.Errorf("unknown history action %q: %w", action, errUsage)
	}
}

func (c *cli) chat(ctx context.Context) error {
	for _, m := range c.service.Transcript() {
		c.printMessage(m)
	}

	scanner := bufio.NewScanner(c.in)
	for {
		fmt.Fprint(c.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(c.out)
			return scanner.Err()
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if text == "/quit" || text == "/exit" {
			return nil
		}

		reply, err := c.service.SendChat(ctx, text)
		if err != nil {
			return err
		}
		c.printMessage(reply)

		if ctx.Err() != nil {
			return nil
		}
	}
}

func (c *cli) printMessage(m core.ChatMessage) {
	if m.Role == core.RoleModel {
		fmt.Fprintf(c.out, "GuardBot: %s\n", m.Text)
	}
}

func (c *cli) printResult(result *core.AnalysisResult, duration time.Duration) error {
	if c.jsonOutput {
		return c.printJSON(result)
	}

	fmt.Fprintf(c.out, "\n=== Results ===\n")
	fmt.Fprintf(c.out, "Verdict: %s\n", result.Verdict)
	fmt.Fprintf(c.out, "Overall score: %d/100\n", result.OverallScore)
	for _, check := range result.Checks {
		fmt.Fprintf(c.out, "  [%3d] %s: %s\n", check.Score, check.Name, check.Description)
	}
	if duration > 0 {
		fmt.Fprintf(c.out, "Processing time: %v\n", duration.Round(time.Millisecond))
	}
	return nil
}

func (c *cli) printJSON(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// summarize returns the first line of s, cut to limit runes
func summarize(s string, limit int) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i] + " ..."
	}
	r := []rune(s)
	if len(r) > limit {
		return string(r[:limit]) + "..."
	}
	return s
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/MikeSquared-Agency/arbor/internal/branch"
	"github.com/MikeSquared-Agency/arbor/internal/library"
	"github.com/MikeSquared-Agency/arbor/internal/metrics"
	"github.com/MikeSquared-Agency/arbor/internal/render"
)

var (
	showConversation string
	showJSON         bool
	showPretty       bool
	showMetadata     bool
	showMoves        []string
	showStyle        string
	showWidth        int
)

var showCmd = &cobra.Command{
	Use:   "show <conversations.json>",
	Short: "Print a conversation along its selected branch",
	Long: `Print one conversation from an export archive, following the branch that
ends at its current node. Use --move node:next or node:previous (repeatable)
to switch branches at a fork before printing. Without --conversation the
archive's conversations are listed.`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

var checkCmd = &cobra.Command{
	Use:   "check <conversations.json>",
	Short: "Open every conversation and report the ones that are broken",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheck,
}

func init() {
	f := showCmd.Flags()
	f.StringVarP(&showConversation, "conversation", "c", "", "conversation id")
	f.BoolVar(&showJSON, "json", false, "print the view as JSON")
	f.BoolVar(&showPretty, "pretty", false, "style the Markdown for the terminal")
	f.BoolVar(&showMetadata, "metadata", false, "include node ids, status and attachments")
	f.StringArrayVar(&showMoves, "move", nil, "branch switch as node:direction, applied in order")
	f.StringVar(&showStyle, "style", "", "glamour style for --pretty (default: detect)")
	f.IntVar(&showWidth, "width", 80, "word wrap width for --pretty")
}

func openLibrary(ctx context.Context, path string) (*library.Library, error) {
	logger := setupLogging(levelOr("warn"), os.Stderr)
	lib := library.New(logger)
	if _, err := lib.Load(ctx, path); err != nil {
		return nil, err
	}
	return lib, nil
}

func runShow(cmd *cobra.Command, args []string) error {
	lib, err := openLibrary(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if showConversation == "" {
		return writeMarkdown(out, listMarkdown(lib.List()))
	}

	v, err := lib.View(showConversation)
	if err != nil {
		return err
	}
	for _, m := range showMoves {
		node, dirName, ok := strings.Cut(m, ":")
		if !ok {
			return fmt.Errorf("invalid --move %q: want node:direction", m)
		}
		dir, err := branch.ParseDirection(dirName)
		if err != nil {
			return err
		}
		if v, err = lib.MoveBranch(cmd.Context(), showConversation, node, dir); err != nil {
			return fmt.Errorf("move %s: %w", m, err)
		}
	}

	if showJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}

	r := &render.Renderer{WithMetadata: showMetadata}
	md, err := r.Markdown(v)
	if err != nil {
		return err
	}
	return writeMarkdown(out, md)
}

func writeMarkdown(w io.Writer, md string) error {
	if showPretty {
		styled, err := render.Terminal(md, showStyle, showWidth)
		if err != nil {
			return err
		}
		md = styled
	}
	_, err := io.WriteString(w, md)
	return err
}

func listMarkdown(list []library.Summary) string {
	var b strings.Builder
	b.WriteString("| id | title | messages | status |\n|---|---|---|---|\n")
	for _, s := range list {
		fmt.Fprintf(&b, "| %s | %s | %d | %s |\n", s.ID, strings.ReplaceAll(s.Title, "|", `\|`), s.Messages, s.Status)
	}
	return b.String()
}

type checkReport struct {
	Archive       string         `yaml:"archive"`
	Conversations int            `yaml:"conversations"`
	Empty         int            `yaml:"empty"`
	Failed        []checkFailure `yaml:"failed,omitempty"`
}

type checkFailure struct {
	ID    string `yaml:"id"`
	Title string `yaml:"title,omitempty"`
	Error string `yaml:"error"`
}

func runCheck(cmd *cobra.Command, args []string) error {
	lib, err := openLibrary(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	report := checkReport{Archive: args[0]}
	for _, s := range lib.List() {
		report.Conversations++
		switch s.Status {
		case metrics.StatusEmpty:
			report.Empty++
		case metrics.StatusFailed:
			report.Failed = append(report.Failed, checkFailure{ID: s.ID, Title: s.Title, Error: s.Error})
		}
	}

	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(report); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	if n := len(report.Failed); n > 0 {
		return fmt.Errorf("%d of %d conversations could not be opened", n, report.Conversations)
	}
	return nil
}

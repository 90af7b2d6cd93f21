package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/embedder/internal/render"
)

type renderFlags struct {
	out      string
	host     string
	selector string
	stats    bool
}

func newRenderCommand() *cobra.Command {
	var flags renderFlags

	cmd := &cobra.Command{
		Use:   "render [file]",
		Short: "Replace embed anchors in an HTML file (stdin when omitted)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd, args, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.out, "out", "o", "", "write the result to this file instead of stdout")
	cmd.Flags().StringVar(&flags.host, "host", "", "site host forwarded to providers that need a parent domain")
	cmd.Flags().StringVar(&flags.selector, "selector", "", "CSS selector for embed anchors")
	cmd.Flags().BoolVar(&flags.stats, "stats", false, "print a table of render counts to stderr")

	return cmd
}

func runRender(cmd *cobra.Command, args []string, flags renderFlags) error {
	input, err := readInput(cmd, args)
	if err != nil {
		return err
	}

	app, err := newCLIApp(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	result, err := app.Renderer.RenderDocument(cmd.Context(), string(input), render.RenderOptions{
		Selector: flags.selector,
		SiteHost: flags.host,
	})
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}

	if flags.stats {
		renderStats(cmd.ErrOrStderr(), result.Stats)
	}

	if flags.out == "" {
		_, err = io.WriteString(cmd.OutOrStdout(), result.HTML)
		return err
	}

	//nolint:gosec // output path is operator supplied.
	if err = os.WriteFile(flags.out, []byte(result.HTML), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", flags.out, err)
	}
	return nil
}

func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}

	//nolint:gosec // input path is operator supplied.
	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", args[0], err)
	}
	return data, nil
}

func renderStats(w io.Writer, stats render.Stats) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	t.AppendHeader(table.Row{"Anchors", "Embedded", "Skipped", "Gist", "Instagram", "HTML"})
	t.AppendRow(table.Row{
		stats.Found,
		stats.Embedded,
		stats.Skipped,
		stats.ByKind[render.KindGist],
		stats.ByKind[render.KindInstagram],
		stats.ByKind[render.KindHTML],
	})

	t.Render()
}

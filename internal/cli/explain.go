package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/go-logr/logr/funcr"
	"github.com/spf13/cobra"

	"github.com/r9s-ai/jsonlog/pkg/jsonformat"
	"github.com/r9s-ai/jsonlog/pkg/tokens"
)

type explainOptions struct {
	formatOptions

	trace      bool
	listTokens bool
}

func newExplainCmd() *cobra.Command {
	opts := explainOptions{}
	cmd := &cobra.Command{
		Use:   "explain",
		Short: "Show how a format compiles, one row per output property",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplain(cmd.OutOrStdout(), cmd.ErrOrStderr(), opts)
		},
	}
	fs := cmd.Flags()
	opts.bind(fs)
	fs.BoolVar(&opts.trace, "trace", false, "also print the compile trace to stderr")
	fs.BoolVar(&opts.listTokens, "tokens", false, "list the built-in tokens")
	return cmd
}

func runExplain(out, errOut io.Writer, opts explainOptions) error {
	r := lipgloss.NewRenderer(out)
	head := r.NewStyle().Bold(true)
	keyStyle := r.NewStyle().Foreground(lipgloss.Color("6"))
	faint := r.NewStyle().Faint(true)

	if opts.listTokens {
		for _, name := range tokens.Names() {
			if _, err := fmt.Fprintln(out, keyStyle.Render(":"+name)); err != nil {
				return err
			}
		}
		return nil
	}

	var extra []jsonformat.Option
	if opts.trace {
		extra = append(extra, jsonformat.WithTracer(funcr.New(func(prefix, args string) {
			_, _ = fmt.Fprintln(errOut, args)
		}, funcr.Options{Verbosity: 1})))
	}
	f, err := opts.compile(extra...)
	if err != nil {
		return err
	}

	plan := f.Plan()
	if _, err := fmt.Fprintf(out, "%s %s, %d properties\n\n", head.Render("mode:"), f.Mode(), len(plan)); err != nil {
		return err
	}

	rows := make([][]string, 0, len(plan)+1)
	rows = append(rows, []string{"KEY", "MODE", "TYPE", "TEMPLATE", "DETAIL"})
	for _, p := range plan {
		rows = append(rows, []string{p.Key, p.Mode, p.Type, p.Template, planDetail(p)})
	}
	widths := make([]int, len(rows[0]))
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}

	for n, row := range rows {
		var b strings.Builder
		for i, cell := range row {
			if i == len(row)-1 {
				cell = strings.TrimRight(cell, " ")
			} else {
				cell += strings.Repeat(" ", widths[i]-lipgloss.Width(cell)+2)
			}
			switch {
			case n == 0:
				cell = head.Render(cell)
			case i == 0:
				cell = keyStyle.Render(cell)
			case i == len(row)-1:
				cell = faint.Render(cell)
			}
			b.WriteString(cell)
		}
		if _, err := fmt.Fprintln(out, strings.TrimRight(b.String(), " ")); err != nil {
			return err
		}
	}
	return nil
}

func planDetail(p jsonformat.FieldPlan) string {
	var parts []string
	if p.Expression != "" {
		parts = append(parts, "expr="+p.Expression)
	}
	if p.Trailer != "" {
		parts = append(parts, fmt.Sprintf("trailer=%q", p.Trailer))
	}
	if p.NoDefault {
		parts = append(parts, "no default")
	} else if p.Mode != jsonformat.ModeConstant {
		parts = append(parts, "default="+jsonformat.Stringify(p.Default))
	}
	return strings.Join(parts, " ")
}

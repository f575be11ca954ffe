package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/spf13/cobra"

	"github.com/fanyicharllson/whichemail/analytics"
	"github.com/fanyicharllson/whichemail/export"
	"github.com/fanyicharllson/whichemail/pkg/di"
)

func (a *app) newExportCmd() *cobra.Command {
	var format, out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export your services without passwords",
		Long: "Export writes a JSON backup, a CSV sheet or a text summary. With --out pointing at a\n" +
			"directory the file gets a timestamped name; with --out - it goes to stdout.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now()
			return a.run(cmd, func(ctx context.Context, c *di.Container) error {
				list, err := c.Services().Services(ctx)
				if err != nil {
					return err
				}
				if len(list) == 0 {
					return errors.New("No services to export. Add some services first!", errors.CategoryBadInput).
						WithTextCode("NOTHING_TO_EXPORT")
				}

				if out == "-" {
					return export.Write(cmd.OutOrStdout(), format, list, now)
				}

				path, err := exportPath(out, format, now)
				if err != nil {
					return err
				}
				if err := writeFile(path, func(w io.Writer) error {
					return export.Write(w, format, list, now)
				}); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %d service(s) to %s\n", len(list), path)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", export.FormatJSON, "Export format: json, csv or txt")
	cmd.Flags().StringVar(&out, "out", ".", "Output file or directory, - for stdout")
	return cmd
}

// exportPath resolves out to a file path, naming the file when out is a
// directory.
func exportPath(out, format string, now time.Time) (string, error) {
	name, err := export.FileName(format, now)
	if err != nil {
		return "", err
	}
	if out == "" {
		return name, nil
	}
	if info, err := os.Stat(out); err == nil && info.IsDir() {
		return filepath.Join(out, name), nil
	}
	return out, nil
}

func writeFile(path string, render func(io.Writer) error) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return errors.Wrap(err, errors.CategoryBadInput, "create export file")
	}
	if err := render(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (a *app) newStatsCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show statistics about your services",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now()
			return a.run(cmd, func(ctx context.Context, c *di.Container) error {
				list, err := c.Services().Services(ctx)
				if err != nil {
					return err
				}
				summary := analytics.Compute(list, now)
				if asJSON {
					return printJSON(cmd.OutOrStdout(), summary)
				}
				return printSummary(cmd.OutOrStdout(), summary)
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func printSummary(w io.Writer, s analytics.Summary) error {
	fmt.Fprintf(w, "Total services:   %d\n", s.TotalServices)
	fmt.Fprintf(w, "Unique emails:    %d\n", s.UniqueEmails)
	fmt.Fprintf(w, "With password:    %d\n", s.WithPassword)
	fmt.Fprintf(w, "Without password: %d\n", s.WithoutPassword)
	fmt.Fprintf(w, "Security score:   %d%%\n", s.SecurityScore)
	fmt.Fprintf(w, "Last 30 days:     %d\n", s.RecentServices)

	fmt.Fprint(w, "Activity:        ")
	for _, wk := range s.Weekly {
		fmt.Fprintf(w, " %s=%d", wk.Week, wk.Count)
	}
	fmt.Fprintln(w)

	if len(s.Categories) > 0 {
		fmt.Fprintln(w, "Categories:")
		for _, c := range s.Categories {
			fmt.Fprintf(w, "  %-20s %d\n", c.CategoryID, c.Count)
		}
	}
	if len(s.TopEmails) > 0 {
		fmt.Fprintln(w, "Most used emails:")
		for i, e := range s.TopEmails {
			fmt.Fprintf(w, "  %d. %s (%d)\n", i+1, e.Email, e.Count)
		}
	}
	return nil
}

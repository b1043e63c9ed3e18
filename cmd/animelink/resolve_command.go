package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"animelink/internal/resolver"
)

func newResolveCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	var noCacheWrite bool

	cmd := &cobra.Command{
		Use:   "resolve <name>...",
		Short: "Resolve release file names to catalog entries and episodes",
		Long: `Resolve parses each release file name, searches the catalog for its title,
and maps absolute episode numbers onto the season they belong to.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, appOptions{readOnlyCache: noCacheWrite}, func(runCtx context.Context, a *app) error {
				results, err := a.resolver.ResolveFiles(runCtx, args)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, results)
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderResults(results))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print results as JSON")
	cmd.Flags().BoolVar(&noCacheWrite, "no-cache-write", false, "Read the persisted cache but do not write to it")
	return cmd
}

func renderResults(results []resolver.Result) string {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		id, title := "", ""
		if r.Media != nil {
			id = strconv.Itoa(r.Media.ID)
			title = truncate(r.Media.DisplayTitle(), 40)
		}
		season := ""
		if r.Season > 0 {
			season = strconv.Itoa(r.Season)
		}
		rows = append(rows, []string{
			truncate(r.File, maxCellWidth),
			id,
			title,
			r.EpisodeLabel(),
			season,
			resultStatus(r),
		})
	}
	return renderTable([]string{"File", "ID", "Title", "Episode", "Season", "Status"}, rows, 1, 4)
}

func resultStatus(r resolver.Result) string {
	switch {
	case r.Skipped:
		return "skipped"
	case r.Failed:
		return "failed"
	case r.Media == nil:
		return "unmatched"
	default:
		return "resolved"
	}
}

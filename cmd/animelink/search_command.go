package main

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"animelink/internal/catalog"
	"animelink/internal/titles"
)

type searchHit struct {
	Media *catalog.Media `json:"media"`
	Score int            `json:"score"`
}

func newSearchCommand(ctx *commandContext) *cobra.Command {
	var year int
	var adult bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the catalog by title",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.TrimSpace(strings.Join(args, " "))
			if query == "" {
				return fmt.Errorf("search query must not be empty")
			}
			return ctx.withApp(cmd, appOptions{}, func(runCtx context.Context, a *app) error {
				page, err := a.catalog.SearchByText(runCtx, catalog.TextFilter{
					Name:    query,
					Year:    year,
					IsAdult: adult,
					Sort:    []string{"SEARCH_MATCH"},
					Page:    1,
					PerPage: 25,
				})
				if err != nil {
					return err
				}
				hits := rankHits(page.Media, query)
				if asJSON {
					return writeJSON(cmd, hits)
				}
				out := cmd.OutOrStdout()
				if len(hits) == 0 {
					fmt.Fprintf(out, "No catalog entries match %q\n", query)
					return nil
				}
				fmt.Fprintln(out, renderHits(hits))
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&year, "year", 0, "Restrict results to a season year")
	cmd.Flags().BoolVar(&adult, "adult", false, "Search adult entries instead of general ones")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print results as JSON")
	return cmd
}

// rankHits orders media by title distance, keeping catalog order on ties.
func rankHits(media []*catalog.Media, query string) []searchHit {
	hits := make([]searchHit, 0, len(media))
	for _, m := range media {
		hits = append(hits, searchHit{Media: m, Score: titles.Score(m, query)})
	}
	slices.SortStableFunc(hits, func(a, b searchHit) int { return cmp.Compare(a.Score, b.Score) })
	return hits
}

func renderHits(hits []searchHit) string {
	rows := make([][]string, 0, len(hits))
	for _, h := range hits {
		m := h.Media
		episodes := ""
		if n := m.HighestEpisode(); n > 0 {
			episodes = strconv.Itoa(n)
		}
		year := ""
		if m.SeasonYear > 0 {
			year = strconv.Itoa(m.SeasonYear)
		}
		rows = append(rows, []string{
			strconv.Itoa(m.ID),
			truncate(m.DisplayTitle(), maxCellWidth),
			m.Format,
			episodes,
			year,
			strconv.Itoa(h.Score),
		})
	}
	return renderTable([]string{"ID", "Title", "Format", "Episodes", "Year", "Score"}, rows, 0, 3, 4, 5)
}

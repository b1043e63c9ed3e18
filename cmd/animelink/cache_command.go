package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"animelink/internal/ttlcache"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the response cache",
	}

	cacheCmd.AddCommand(newCacheStatsCommand(ctx))
	cacheCmd.AddCommand(newCacheClearCommand(ctx))

	return cacheCmd
}

func newCacheStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cached entries per namespace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, appOptions{readOnlyCache: true}, func(_ context.Context, a *app) error {
				out := cmd.OutOrStdout()
				location := a.cfg.Cache.Path
				if location == "" {
					location = "(in memory)"
				}
				fmt.Fprintf(out, "Backend: %s\n", a.cfg.Cache.Backend)
				fmt.Fprintf(out, "Store:   %s\n", location)

				stats := a.cache.Stats()
				rows := make([][]string, 0, len(stats.Namespaces))
				for _, ns := range ttlcache.Namespaces() {
					s := stats.Namespaces[ns]
					rows = append(rows, []string{
						string(ns),
						strconv.Itoa(s.Entries),
						strconv.Itoa(s.Fresh),
						yesNo(ns.Persisted()),
					})
				}
				fmt.Fprintln(out, renderTable([]string{"Namespace", "Entries", "Fresh", "Persisted"}, rows, 1, 2))
				return nil
			})
		},
	}
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear [namespace]",
		Short: "Drop cached entries, optionally for one namespace",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var ns ttlcache.Namespace
			if len(args) == 1 {
				parsed, ok := ttlcache.ParseNamespace(strings.TrimSpace(args[0]))
				if !ok {
					return fmt.Errorf("unknown cache namespace %q (valid: %s)", args[0], namespaceNames())
				}
				ns = parsed
			}
			return ctx.withApp(cmd, appOptions{}, func(runCtx context.Context, a *app) error {
				if err := a.cache.Clear(runCtx, ns); err != nil {
					return fmt.Errorf("clear cache: %w", err)
				}
				label := "all namespaces"
				if ns != "" {
					label = "namespace " + string(ns)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s\n", label)
				return nil
			})
		},
	}
}

func namespaceNames() string {
	names := make([]string, 0, len(ttlcache.Namespaces()))
	for _, ns := range ttlcache.Namespaces() {
		names = append(names, string(ns))
	}
	return strings.Join(names, ", ")
}

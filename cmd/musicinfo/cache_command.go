package main

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"musicinfo/internal/cache"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage cached records",
	}

	cacheCmd.AddCommand(newCacheListCommand(ctx))
	cacheCmd.AddCommand(newCacheClearCommand(ctx))
	cacheCmd.AddCommand(newCacheRemoveCommand(ctx))

	return cacheCmd
}

func newCacheListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cached records, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.openServices(ctx.newLogger(cmd))
			if err != nil {
				return err
			}
			defer svc.Close()

			printCacheEntries(cmd.OutOrStdout(), svc.cache.List())
			return nil
		},
	}
}

func printCacheEntries(out io.Writer, entries []cache.EntryInfo) {
	if len(entries) == 0 {
		fmt.Fprintln(out, "No cached records.")
		return
	}

	const stampLayout = "2006-01-02 15:04"
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		stored, age := "unknown", ""
		if !e.StoredAt.IsZero() {
			stored = e.StoredAt.Local().Format(stampLayout)
			age = humanize.Time(e.StoredAt)
		}
		status := "ok"
		switch {
		case e.Malformed:
			status = "malformed"
		case e.Degraded:
			status = "degraded"
		}
		rows = append(rows, []string{e.Key, e.GroupName, stored, age, status})
	}

	fmt.Fprintln(out, renderTable(
		[]string{"Key", "Artist", "Stored", "Age", "Status"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	))
	fmt.Fprintf(out, "%d cached %s\n", len(entries), pluralize(len(entries), "record", "records"))
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.openServices(ctx.newLogger(cmd))
			if err != nil {
				return err
			}
			defer svc.Close()

			n := len(svc.cache.List())
			svc.cache.ClearAll()
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d cached %s\n", n, pluralize(n, "record", "records"))
			return nil
		},
	}
}

func newCacheRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <key>",
		Short: "Remove one cached record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.openServices(ctx.newLogger(cmd))
			if err != nil {
				return err
			}
			defer svc.Close()

			key := args[0]
			found := false
			for _, e := range svc.cache.List() {
				if e.Key == key {
					found = true
					break
				}
			}
			if !found {
				return fmt.Errorf("no cached record with key %s", key)
			}

			svc.cache.Delete(key)
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", key)
			return nil
		},
	}
}

func pluralize(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

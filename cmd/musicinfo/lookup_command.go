package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"musicinfo/internal/musicinfo"
)

func newLookupCommand(ctx *commandContext) *cobra.Command {
	var load bool

	cmd := &cobra.Command{
		Use:   "lookup <audio-file>",
		Short: "Show the cached record for an audio file's tags",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			track, err := musicinfo.ReadTrack(args[0])
			if err != nil {
				return err
			}
			if track.Artist == "" {
				return fmt.Errorf("%s has no artist tag", track.FilePath)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "File:     %s\n", track.FilePath)
			fmt.Fprintf(out, "Artist:   %s\n", track.Artist)
			fmt.Fprintf(out, "Album:    %s\n", track.Album)
			fmt.Fprintf(out, "Title:    %s\n", track.Title)
			if track.Duration > 0 {
				fmt.Fprintf(out, "Duration: %s\n", track.Duration.Round(time.Second))
			}
			fmt.Fprintln(out)

			log := ctx.newLogger(cmd)
			svc, err := ctx.openServices(log)
			if err != nil {
				return err
			}
			defer svc.Close()

			id := track.Identity()
			key := svc.enricher.GenerateCacheKey(id)
			if rec, ok := svc.enricher.CachedData(key); ok {
				printRecord(out, key, rec)
				return nil
			}
			if !load {
				fmt.Fprintf(out, "No cached record (key %s); run with --load to fetch it.\n", key)
				return nil
			}

			rec, err := svc.enricher.Enrich(cmd.Context(), id)
			if err != nil {
				return err
			}
			printRecord(out, key, rec)
			return nil
		},
	}

	cmd.Flags().BoolVar(&load, "load", false, "Fetch the record when it is not cached")
	return cmd
}

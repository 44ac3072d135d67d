package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"musicinfo/internal/musicinfo"
)

func newEnrichCommand(ctx *commandContext) *cobra.Command {
	var id musicinfo.Identity
	var force, asJSON bool

	cmd := &cobra.Command{
		Use:   "enrich",
		Short: "Fetch or show the music info record for a track",
		RunE: func(cmd *cobra.Command, args []string) error {
			id.Artist = strings.TrimSpace(id.Artist)
			id.Track = strings.TrimSpace(id.Track)
			if id.Artist == "" || id.Track == "" {
				return fmt.Errorf("--artist and --track are required")
			}

			log := ctx.newLogger(cmd)
			svc, err := ctx.openServices(log)
			if err != nil {
				return err
			}
			defer svc.Close()

			key := svc.enricher.GenerateCacheKey(id)
			if force {
				svc.enricher.ClearCache(key)
			}

			rec, err := svc.enricher.Enrich(cmd.Context(), id)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(rec)
			}
			printRecord(out, key, rec)
			return nil
		},
	}

	cmd.Flags().StringVar(&id.Artist, "artist", "", "Artist name")
	cmd.Flags().StringVar(&id.Album, "album", "", "Album title")
	cmd.Flags().StringVar(&id.Track, "track", "", "Track title")
	cmd.Flags().BoolVar(&force, "force", false, "Ignore the cached record and fetch again")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the record as JSON")

	return cmd
}

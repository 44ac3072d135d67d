package main

import (
	"github.com/spf13/cobra"

	"musicinfo/internal/provider/spotify"
	"musicinfo/internal/relay"
)

func newRelayCommand(ctx *commandContext) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Run the credential-holding relay server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.config
			if addr == "" {
				addr = cfg.RelayAddr
			}

			log := ctx.newLogger(cmd)
			enableFileLog(log, "relay")
			defer log.Close()

			artists := spotify.New(cfg.SpotifyClientID, cfg.SpotifyClientSecret, nil, log.Named("spotify"))
			artists.SetTimeout(cfg.HTTPTimeout())
			if !artists.Configured() {
				log.Warn("Spotify credentials are not set; artist-image requests will fail")
			}
			if cfg.GeminiAPIKey == "" {
				log.Warn("No Gemini API key set; clients must send their own")
			}

			srv := relay.New(relay.Options{
				Addr:         addr,
				GeminiAPIKey: cfg.GeminiAPIKey,
				Artists:      artists,
				Logger:       log.Named("relay"),
			})
			return srv.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config relay_addr)")
	return cmd
}

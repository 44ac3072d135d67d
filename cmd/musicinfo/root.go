package main

import (
	"github.com/spf13/cobra"

	"musicinfo/internal/shutdown"
)

// skipConfigAnnotation marks commands that run without a loaded config.
const skipConfigAnnotation = "musicinfo/skip-config"

func newRootCommand(sh *shutdown.Handler) *cobra.Command {
	var configFlag string
	var verboseFlag bool

	ctx := newCommandContext(sh, &configFlag, &verboseFlag)

	rootCmd := &cobra.Command{
		Use:           "musicinfo",
		Short:         "Artist and track enrichment with a local cache",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations[skipConfigAnnotation] != "" {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(newEnrichCommand(ctx))
	rootCmd.AddCommand(newLookupCommand(ctx))
	rootCmd.AddCommand(newCacheCommand(ctx))
	rootCmd.AddCommand(newRelayCommand(ctx))
	rootCmd.AddCommand(newWebCommand(ctx))
	rootCmd.AddCommand(newInitConfigCommand())

	return rootCmd
}

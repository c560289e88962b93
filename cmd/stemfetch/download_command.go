package main

import (
	"github.com/spf13/cobra"
)

func newDownloadCommand(ctx *commandContext) *cobra.Command {
	var flags pipelineFlags
	var convert bool

	cmd := &cobra.Command{
		Use:   "download <recording>",
		Short: "Download a recording without transcribing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := flags.options(args[0])
			if err != nil {
				return err
			}
			opts.WithMixdown = convert
			return runPipeline(cmd, ctx, opts)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&flags.finalFormat, "format", "", "Final audio format (opus or mp3; defaults to configuration)")
	cmd.Flags().BoolVar(&convert, "convert", false, "Also produce the final mixed audio file")
	return cmd
}

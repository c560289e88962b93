package main

import (
	"github.com/spf13/cobra"
)

func newTranscribeCommand(ctx *commandContext) *cobra.Command {
	var flags pipelineFlags
	var skipMerge bool

	cmd := &cobra.Command{
		Use:   "transcribe <recording>",
		Short: "Transcribe a downloaded recording and merge the transcripts",
		Long: "Transcribe runs the transcription and merge stages. The download stage " +
			"is skipped when a prior run already fetched the recording; otherwise the " +
			"audio is downloaded first.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := flags.options(args[0])
			if err != nil {
				return err
			}
			opts.WithTranscription = true
			opts.WithMerge = !skipMerge
			return runPipeline(cmd, ctx, opts)
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&skipMerge, "skip-merge", false, "Skip merging per-track transcripts")
	return cmd
}

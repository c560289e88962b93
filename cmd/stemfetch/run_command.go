package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"stemfetch/internal/pipeline"
)

// pipelineFlags are the shared knobs for the commands that drive a run.
type pipelineFlags struct {
	key          string
	mixed        bool
	sourceFormat string
	finalFormat  string
	resumeDir    string
	resume       bool
	overwrite    bool
	recreateJob  bool
}

func (f *pipelineFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.key, "key", "k", "", "Recording access key")
	cmd.Flags().BoolVar(&f.mixed, "mixed", false, "Request a single server-side mix instead of per-track stems")
	cmd.Flags().StringVar(&f.sourceFormat, "source-format", "flac", "Audio format requested from the recording service")
	cmd.Flags().StringVar(&f.resumeDir, "resume-dir", "", "Resume inside an explicit recording directory")
	cmd.Flags().BoolVar(&f.resume, "resume", false, "Resume the newest existing directory for this recording")
	cmd.Flags().BoolVar(&f.overwrite, "overwrite", false, "Reuse existing directories and redo completed stages")
	cmd.Flags().BoolVar(&f.recreateJob, "recreate-job", false, "Delete any existing remote job and request a new one")
}

func (f *pipelineFlags) options(arg string) (pipeline.Options, error) {
	id, key, err := resolveRecording(arg, f.key)
	if err != nil {
		return pipeline.Options{}, err
	}
	return pipeline.Options{
		RecordingID:      id,
		Key:              key,
		Mixed:            f.mixed,
		SourceFormat:     f.sourceFormat,
		FinalFormat:      f.finalFormat,
		ResumeDir:        f.resumeDir,
		Resume:           f.resume,
		Overwrite:        f.overwrite,
		ForceJobRecreate: f.recreateJob,
	}, nil
}

func runPipeline(cmd *cobra.Command, ctx *commandContext, opts pipeline.Options) error {
	p, cleanup, err := ctx.buildPipeline()
	if err != nil {
		return err
	}
	defer cleanup()

	summary, err := p.Run(cmd.Context(), opts)
	if err != nil {
		return err
	}
	printSummary(cmd, summary)
	return nil
}

func printSummary(cmd *cobra.Command, summary *pipeline.Summary) {
	pairs := [][2]string{
		{"Directory", summary.Dirs.Root},
		{"Download", orDash(summary.DownloadPath)},
		{"Final audio", orDash(summary.FinalPath)},
		{"Transcripts", strconv.Itoa(len(summary.Transcripts))},
	}
	if summary.MergedTxt != "" {
		pairs = append(pairs, [2]string{"Merged transcript", summary.MergedTxt})
		pairs = append(pairs, [2]string{"Merged JSON", summary.MergedJSON})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderKeyValues(pairs))
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var flags pipelineFlags
	var skipMixdown, skipTranscription, skipMerge bool

	cmd := &cobra.Command{
		Use:   "run <recording>",
		Short: "Download, convert, transcribe, and merge a recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := flags.options(args[0])
			if err != nil {
				return err
			}
			opts.WithMixdown = !skipMixdown
			opts.WithTranscription = !skipTranscription
			opts.WithMerge = opts.WithTranscription && !skipMerge
			return runPipeline(cmd, ctx, opts)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&flags.finalFormat, "format", "", "Final audio format (opus or mp3; defaults to configuration)")
	cmd.Flags().BoolVar(&skipMixdown, "skip-mixdown", false, "Skip producing the final mixed audio file")
	cmd.Flags().BoolVar(&skipTranscription, "skip-transcription", false, "Skip transcription and merging")
	cmd.Flags().BoolVar(&skipMerge, "skip-merge", false, "Skip merging per-track transcripts")
	return cmd
}

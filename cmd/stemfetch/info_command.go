package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"stemfetch/internal/identity"
)

func newInfoCommand(ctx *commandContext) *cobra.Command {
	var keyFlag string

	cmd := &cobra.Command{
		Use:   "info <recording>",
		Short: "Show recording metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, key, err := resolveRecording(args[0], keyFlag)
			if err != nil {
				return err
			}

			client, err := ctx.remoteClient()
			if err != nil {
				return err
			}

			meta, err := client.Metadata(cmd.Context(), id, key)
			if err != nil {
				return err
			}
			if meta.Duration <= 0 {
				if duration, err := client.Duration(cmd.Context(), id, key); err == nil {
					meta.Duration = duration
				}
			}

			src := identity.SourceFromMetadata(meta)
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderKeyValues([][2]string{
				{"Recording", meta.Recording.ID},
				{"Started", orDash(meta.Recording.StartTime)},
				{"Guild", orDash(meta.GuildName())},
				{"Channel", orDash(meta.ChannelName())},
				{"Duration", formatDuration(meta.Duration)},
				{"Tracks", strconv.Itoa(len(meta.Users))},
				{"Directory name", identity.BaseName(src, nil)},
			}))

			if len(meta.Users) == 0 {
				return nil
			}
			rows := make([][]string, 0, len(meta.Users))
			for _, user := range meta.Users {
				rows = append(rows, []string{strconv.Itoa(user.Track), user.Username})
			}
			fmt.Fprintln(out, renderTable([]string{"Track", "Speaker"}, rows, []columnAlignment{alignRight, alignLeft}))
			return nil
		},
	}

	cmd.Flags().StringVarP(&keyFlag, "key", "k", "", "Recording access key")
	return cmd
}

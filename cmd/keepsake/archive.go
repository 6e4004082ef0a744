package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/PabloGalante/keepsake/internal/app/archive"
	"github.com/PabloGalante/keepsake/internal/bootstrap"
	"github.com/PabloGalante/keepsake/internal/configutil"
	"github.com/PabloGalante/keepsake/internal/domain"
)

func newArchiveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Browse archived keepsakes",
	}
	cmd.AddCommand(newArchiveListCmd())
	cmd.AddCommand(newArchiveShowCmd())
	return cmd
}

func openArchiveService(cmd *cobra.Command) (*archive.Service, func() error, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	store, closeStore, err := bootstrap.OpenArchive(cmd.Context(), cfg)
	if err != nil {
		return nil, nil, err
	}
	return archive.NewService(store), closeStore, nil
}

func newArchiveListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the newest keepsakes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, closeStore, err := openArchiveService(cmd)
			if err != nil {
				return err
			}
			defer closeStore()

			list, err := svc.ListKeepsakes(cmd.Context(), configutil.FlagOrViperInt(cmd, "limit", ""))
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "ID\tCREATED\tNAME\tRELATIONSHIP\tMOOD\tIMAGE\tVOICE")
			for _, k := range list {
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					k.ID,
					k.CreatedAt.Local().Format("2006-01-02 15:04"),
					k.Input.Name,
					k.Input.Relationship,
					k.Input.Mood,
					yesNo(k.Result.ImageURL != ""),
					yesNo(k.Result.HasAudio()),
				)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().Int("limit", 20, "Maximum number of keepsakes to list.")
	return cmd
}

func newArchiveShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Print the letter of one keepsake",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeStore, err := openArchiveService(cmd)
			if err != nil {
				return err
			}
			defer closeStore()

			k, err := svc.GetKeepsake(cmd.Context(), domain.KeepsakeID(args[0]))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "For %s, %s (%s)\n\n%s\n", k.Input.Name, k.Input.Relationship, k.Input.Mood, k.Result.Letter)
			for _, c := range k.Result.Citations {
				_, _ = fmt.Fprintf(out, "  - %s <%s>\n", c.Title, c.URI)
			}
			return nil
		},
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

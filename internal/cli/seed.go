package cli

import (
	"github.com/spf13/cobra"

	"evenup_web/internal/seed"
)

func newSeedCmd(e *env) *cobra.Command {
	var opts seed.Options
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the owner account and grant it the owner role",
		Example: `  evenupctl seed --owner-email you@evenup.in
  evenupctl seed --owner-email you@evenup.in --sample-logs`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			gdb, err := e.openDB(e.cfg)
			if err != nil {
				return err
			}
			return seed.FirstSetup(cmd.Context(), gdb, opts)
		},
	}
	cmd.Flags().StringVar(&opts.OwnerEmail, "owner-email", "", "email of the first owner")
	cmd.Flags().BoolVar(&opts.SampleLogs, "sample-logs", false, "insert sample error logs")
	_ = cmd.MarkFlagRequired("owner-email")
	return cmd
}

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var flags globalFlags

	root := &cobra.Command{
		Use:           "mofkactl",
		Short:         "administer and drive a Mofka provider",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := flags.resolve(cmd.Flags().Changed("address"), cmd.Flags().Changed("log-format")); err != nil {
				return err
			}
			newLogger(flags).Debug("mofkactl starting")
			return nil
		},
	}
	root.PersistentFlags().AddFlagSet(persistentFlagSet(&flags))

	root.AddCommand(
		getTopicCmd(&flags),
		getProduceCmd(&flags),
		getConsumeCmd(&flags),
	)
	return root
}

func main() {
	ctx := context.Background()
	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "mofkactl:", err)
		os.Exit(1)
	}
}

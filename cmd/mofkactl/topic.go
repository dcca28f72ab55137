package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mochi-hpc/mofka-sub001/pkg/driver"
)

// getTopicCmd groups topic administration under "mofkactl topic ...",
// the way the teacher nests "k6 cloud login" under a parent command
// rather than flattening every subcommand at the root.
func getTopicCmd(gs *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "topic",
		Short: "create, inspect and tear down topics and partitions",
	}
	cmd.AddCommand(
		getCreateTopicCmd(gs),
		getAddPartitionCmd(gs),
		getShowTopicCmd(gs),
		getCloseTopicCmd(gs),
		getDestroyTopicCmd(gs),
		getMarkCompleteCmd(gs),
	)
	return cmd
}

func getCreateTopicCmd(gs *globalFlags) *cobra.Command {
	var validatorType, validatorConfig string
	var selectorType, selectorConfig string
	var serializerType, serializerConfig string

	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "create a topic with no partitions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := connect(*gs)
			if err != nil {
				return err
			}
			defer d.Close()

			validatorCfg, err := parseMetadata(validatorConfig)
			if err != nil {
				return err
			}
			selectorCfg, err := parseMetadata(selectorConfig)
			if err != nil {
				return err
			}
			serializerCfg, err := parseMetadata(serializerConfig)
			if err != nil {
				return err
			}

			ctx := context.Background()
			err = d.CreateTopic(ctx, args[0],
				driver.PolicyChoice{Type: validatorType, Config: validatorCfg},
				driver.PolicyChoice{Type: selectorType, Config: selectorCfg},
				driver.PolicyChoice{Type: serializerType, Config: serializerCfg},
			)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created topic %q\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&validatorType, "validator", "default", "validator policy name")
	cmd.Flags().StringVar(&validatorConfig, "validator-config", "", "validator config as JSON")
	cmd.Flags().StringVar(&selectorType, "selector", "round-robin", "partition selector policy name")
	cmd.Flags().StringVar(&selectorConfig, "selector-config", "", "selector config as JSON")
	cmd.Flags().StringVar(&serializerType, "serializer", "json", "serializer policy name")
	cmd.Flags().StringVar(&serializerConfig, "serializer-config", "", "serializer config as JSON")
	return cmd
}

func getAddPartitionCmd(gs *globalFlags) *cobra.Command {
	var partType string
	var adaptiveMin, adaptiveMax uint64

	cmd := &cobra.Command{
		Use:   "add-partition TOPIC",
		Short: "add a partition to a topic",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := connect(*gs)
			if err != nil {
				return err
			}
			defer d.Close()

			uuid, err := d.AddPartition(context.Background(), args[0], driver.AddPartitionOptions{
				Type:        partType,
				AdaptiveMin: adaptiveMin,
				AdaptiveMax: adaptiveMax,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", uuid)
			return nil
		},
	}
	cmd.Flags().StringVar(&partType, "type", "memory", "partition backend type")
	cmd.Flags().Uint64Var(&adaptiveMin, "adaptive-min", 0, "minimum adaptive batch size (0 selects the partition default of 16)")
	cmd.Flags().Uint64Var(&adaptiveMax, "adaptive-max", 0, "maximum adaptive batch size")
	return cmd
}

func getShowTopicCmd(gs *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show NAME",
		Short: "print a topic's policy specs and partition list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := connect(*gs)
			if err != nil {
				return err
			}
			defer d.Close()

			handle, err := d.OpenTopic(context.Background(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "topic: %s\n", handle.Name())
			for i, p := range handle.Partitions() {
				fmt.Fprintf(out, "  partition %d: uuid=%s address=%s\n", i, p.UUID, p.Address)
			}
			return nil
		},
	}
}

func getCloseTopicCmd(gs *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "close NAME",
		Short: "remove a topic from the directory without destroying its partitions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := connect(*gs)
			if err != nil {
				return err
			}
			defer d.Close()
			return d.CloseTopic(context.Background(), args[0])
		},
	}
}

func getDestroyTopicCmd(gs *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "destroy NAME",
		Short: "destroy every partition owned by a topic and remove it from the directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := connect(*gs)
			if err != nil {
				return err
			}
			defer d.Close()
			return d.DestroyTopic(context.Background(), args[0])
		},
	}
}

func getMarkCompleteCmd(gs *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "mark-complete PARTITION_UUID",
		Short: "declare that a partition will never ingest another event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := connect(*gs)
			if err != nil {
				return err
			}
			defer d.Close()
			return d.MarkPartitionComplete(context.Background(), args[0])
		},
	}
}

package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mochi-hpc/mofka-sub001/pkg/consumer"
	"github.com/mochi-hpc/mofka-sub001/pkg/eventid"
	"github.com/mochi-hpc/mofka-sub001/pkg/pool"
)

func getConsumeCmd(gs *globalFlags) *cobra.Command {
	var name string
	var batchSize uint64
	var count int
	var ack bool

	cmd := &cobra.Command{
		Use:   "consume TOPIC",
		Short: "pull events from every partition of a topic and print them",
		Long: `consume prints --count events as newline-delimited JSON
{"id":..., "metadata":...}. A count of 0 runs until every partition
reports completion (see mark-complete).`,
		Args: cobra.ExactArgs(1),
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

			cons, err := consumer.New(handle, consumer.Config{
				Name:      name,
				BatchSize: pool.BatchSize(batchSize),
			})
			if err != nil {
				return err
			}
			defer cons.Unsubscribe(context.Background())

			ctx := context.Background()
			out := cmd.OutOrStdout()

			for i := 0; count <= 0 || i < count; i++ {
				ev, err := cons.Pull().Wait(ctx)
				if err != nil {
					return err
				}
				if ev.ID == eventid.NoMoreEvents {
					return nil
				}

				line := struct {
					ID       uint64          `json:"id"`
					Metadata json.RawMessage `json:"metadata"`
				}{uint64(ev.ID), json.RawMessage(ev.Metadata.Bytes())}
				enc, err := json.Marshal(line)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(enc))

				if ack {
					if err := ev.Ack(ctx); err != nil {
						return err
					}
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "mofkactl", "consumer name")
	cmd.Flags().Uint64Var(&batchSize, "batch-size", 1, "fixed batch size (0 selects adaptive sizing)")
	cmd.Flags().IntVar(&count, "count", 1, "number of events to pull, 0 for unbounded")
	cmd.Flags().BoolVar(&ack, "ack", true, "acknowledge each event after printing it")
	return cmd
}

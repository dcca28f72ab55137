package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mochi-hpc/mofka-sub001/pkg/dataview"
	"github.com/mochi-hpc/mofka-sub001/pkg/eventid"
	"github.com/mochi-hpc/mofka-sub001/pkg/metadata"
	"github.com/mochi-hpc/mofka-sub001/pkg/pool"
	"github.com/mochi-hpc/mofka-sub001/pkg/producer"
)

func getProduceCmd(gs *globalFlags) *cobra.Command {
	var name, metaRaw, data string
	var batchSize uint64
	var ordering string
	var partition int
	var explicitPartition bool

	cmd := &cobra.Command{
		Use:   "produce TOPIC",
		Short: "push one event, or one per stdin line, onto a topic",
		Long: `produce pushes events onto a topic's partitions.

With --data, a single event is pushed. Without --data, one event is
pushed per line read from stdin. Either way, produce flushes and
waits for every pushed event's assigned id before returning.`,
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

			var ord producer.Ordering
			switch strings.ToLower(ordering) {
			case "", "strict":
				ord = producer.Strict
			case "loose":
				ord = producer.Loose
			default:
				return fmt.Errorf("unknown ordering %q, want strict or loose", ordering)
			}

			prod, err := producer.New(handle, producer.Config{
				Name:      name,
				BatchSize: pool.BatchSize(batchSize),
				Ordering:  ord,
			})
			if err != nil {
				return err
			}
			defer prod.Close(context.Background())

			meta, err := parseMetadata(metaRaw)
			if err != nil {
				return err
			}

			var targetPartition *int
			if explicitPartition {
				targetPartition = &partition
			}

			ctx := context.Background()
			out := cmd.OutOrStdout()

			var futures []*pool.Future[eventid.EventID]
			if data != "" {
				future, err := prod.Push(ctx, meta, dataview.New([]byte(data)), targetPartition)
				if err != nil {
					return err
				}
				futures = append(futures, future)
			} else {
				scanner := bufio.NewScanner(cmd.InOrStdin())
				for scanner.Scan() {
					future, err := prod.Push(ctx, meta, dataview.New([]byte(scanner.Text())), targetPartition)
					if err != nil {
						return err
					}
					futures = append(futures, future)
				}
				if err := scanner.Err(); err != nil {
					return err
				}
			}

			flushed, err := prod.Flush(ctx)
			if err != nil {
				return err
			}
			if _, err := flushed.Wait(ctx); err != nil {
				return err
			}
			return printEventIDs(ctx, out, futures)
		},
	}
	cmd.Flags().StringVar(&name, "name", "mofkactl", "producer name")
	cmd.Flags().StringVar(&metaRaw, "meta", "", "event metadata as JSON, applied to every pushed event")
	cmd.Flags().StringVar(&data, "data", "", "push a single event with this literal payload instead of reading stdin")
	cmd.Flags().Uint64Var(&batchSize, "batch-size", 1, "fixed batch size (0 selects adaptive sizing)")
	cmd.Flags().StringVar(&ordering, "ordering", "strict", "strict or loose")
	cmd.Flags().IntVar(&partition, "partition", 0, "explicit target partition index")
	cmd.Flags().BoolVar(&explicitPartition, "explicit-partition", false, "route every pushed event to --partition instead of the topic's selector")
	return cmd
}

func printEventIDs(ctx context.Context, out io.Writer, futures []*pool.Future[eventid.EventID]) error {
	for _, f := range futures {
		id, err := f.Wait(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%d\n", uint64(id))
	}
	return nil
}

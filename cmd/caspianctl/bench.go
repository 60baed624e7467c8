package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"caspian/internal/logging"
	"caspian/internal/network"
	"caspian/internal/sim"
)

// generatePass builds a grid of straight chains: each row is
// in -> n1 -> ... -> out with the given synaptic delay.
func generatePass(net *network.Network, width, height, delay int) error {
	for row := 0; row < height; row++ {
		for col := 0; col < width; col++ {
			idx := uint32(row*width + col)
			if err := net.AddNeuron(idx, 1, -1, 0); err != nil {
				return err
			}
			if col != 0 {
				if err := net.AddSynapse(idx-1, idx, 128, uint8(delay)); err != nil {
					return err
				}
			}
			if col == 0 {
				if err := net.SetInput(idx, row); err != nil {
					return err
				}
			} else if col == width-1 {
				if err := net.SetOutput(idx, row); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func newBenchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run a straight-pass throughput benchmark",
		RunE: func(cmd *cobra.Command, args []string) error {
			width, _ := cmd.Flags().GetInt("width")
			height, _ := cmd.Flags().GetInt("height")
			delay, _ := cmd.Flags().GetInt("delay")
			rounds, _ := cmd.Flags().GetInt("rounds")

			net := network.New(width * height)
			if err := generatePass(net, width, height, delay); err != nil {
				return err
			}

			engine := sim.New(logging.Default())
			engine.Configure(net)

			steps := uint64((delay+1)*width + height + 1)

			start := time.Now()
			for r := 0; r < rounds; r++ {
				for i := 0; i < height; i++ {
					engine.ApplyInput(i, 500, uint64(i))
				}
				engine.Simulate(steps)
				engine.ClearActivity()
			}
			elapsed := time.Since(start)

			fires := int64(engine.Metric("fire_count"))
			accumulates := int64(engine.Metric("accumulate_count"))
			timesteps := int64(engine.Metric("total_timesteps"))

			perSec := float64(accumulates) / elapsed.Seconds()
			fmt.Printf("grid:        %dx%d, synapse delay %d\n", width, height, delay)
			fmt.Printf("rounds:      %d (%d steps each)\n", rounds, steps)
			fmt.Printf("fires:       %s\n", humanize.Comma(fires))
			fmt.Printf("accumulates: %s\n", humanize.Comma(accumulates))
			fmt.Printf("timesteps:   %s\n", humanize.Comma(timesteps))
			fmt.Printf("elapsed:     %s (%s events/sec)\n", elapsed.Round(time.Microsecond), humanize.CommafWithDigits(perSec, 0))
			return nil
		},
	}
	cmd.Flags().Int("width", 100, "chain width")
	cmd.Flags().Int("height", 100, "chain count")
	cmd.Flags().Int("delay", 1, "synaptic delay per hop")
	cmd.Flags().Int("rounds", 10, "benchmark rounds")
	return cmd
}

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"caspian/internal/network"
)

func newRandomCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "random",
		Short: "Generate a random network",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			neurons, _ := cmd.Flags().GetInt("neurons")
			inputs, _ := cmd.Flags().GetInt("inputs")
			outputs, _ := cmd.Flags().GetInt("outputs")
			seed, _ := cmd.Flags().GetInt64("seed")
			outPath, _ := cmd.Flags().GetString("out")

			cfg := network.DefaultRandomConfig(inputs, outputs, seed)

			if outPath != "" {
				net := network.New(neurons)
				if err := net.MakeRandom(cfg); err != nil {
					return err
				}
				payload, err := net.ToJSON()
				if err != nil {
					return err
				}
				return os.WriteFile(outPath, payload, 0o644)
			}

			client, err := openClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			net, err := client.GenerateRandom(context.Background(), name, neurons, cfg)
			if err != nil {
				return err
			}
			fmt.Printf("generated %s: %d neurons, %d synapses\n", name, net.NumNeurons(), net.NumSynapses())
			return nil
		},
	}
	cmd.Flags().String("name", "random", "stored network name")
	cmd.Flags().Int("neurons", 100, "total neuron count")
	cmd.Flags().Int("inputs", 10, "input count")
	cmd.Flags().Int("outputs", 10, "output count")
	cmd.Flags().Int64("seed", 0, "generation seed")
	cmd.Flags().String("out", "", "write JSON to file instead of the store")
	return cmd
}

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Store a network JSON file under a name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")

			payload, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			client, err := openClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			if err := client.SaveNetwork(context.Background(), name, payload); err != nil {
				return err
			}
			fmt.Printf("imported %s\n", name)
			return nil
		},
	}
	cmd.Flags().String("name", "", "stored network name")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <file>",
		Short: "Print network metrics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			net, err := readNetworkFile(args[0])
			if err != nil {
				return err
			}

			fmt.Printf("neurons:             %s\n", humanize.Comma(int64(net.Metric("neuron_count"))))
			fmt.Printf("synapses:            %s\n", humanize.Comma(int64(net.Metric("synapse_count"))))
			fmt.Printf("excitatory synapses: %s\n", humanize.Comma(int64(net.Metric("excitatory_synapse_count"))))
			fmt.Printf("inhibitory synapses: %s\n", humanize.Comma(int64(net.Metric("inhibitory_synapse_count"))))
			fmt.Printf("inputs:              %d\n", net.NumInputs())
			fmt.Printf("outputs:             %d\n", net.NumOutputs())
			fmt.Printf("max synapse delay:   %d\n", net.MaxSynDelay)
			fmt.Printf("max axon delay:      %d\n", net.MaxAxonDelay)
			return nil
		},
	}
}

func newPruneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune <file>",
		Short: "Remove unreachable neurons from a network file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			includeIO, _ := cmd.Flags().GetBool("include-io")
			outPath, _ := cmd.Flags().GetString("out")
			if outPath == "" {
				outPath = args[0]
			}

			net, err := readNetworkFile(args[0])
			if err != nil {
				return err
			}

			before := net.NumNeurons()
			net.Prune(includeIO)
			fmt.Printf("pruned %d of %d neurons\n", before-net.NumNeurons(), before)

			payload, err := net.ToJSON()
			if err != nil {
				return err
			}
			return os.WriteFile(outPath, payload, 0o644)
		},
	}
	cmd.Flags().Bool("include-io", false, "also prune unreachable input/output neurons")
	cmd.Flags().String("out", "", "output path (defaults to in-place)")
	return cmd
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <file>",
		Short: "Export a network file as GML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outPath, _ := cmd.Flags().GetString("out")

			net, err := readNetworkFile(args[0])
			if err != nil {
				return err
			}

			gml := net.ToGML()
			if outPath == "" {
				fmt.Print(gml)
				return nil
			}
			return os.WriteFile(outPath, []byte(gml), 0o644)
		},
	}
	cmd.Flags().String("out", "", "output path (defaults to stdout)")
	return cmd
}

func readNetworkFile(path string) (*network.Network, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	net := network.New(0)
	if err := net.FromJSON(payload); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return net, nil
}

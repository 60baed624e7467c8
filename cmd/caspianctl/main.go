// caspianctl drives the event simulator from the command line: generating,
// inspecting, and pruning networks, running throughput benchmarks, and
// executing batch inference against stored networks.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"caspian/internal/storage"
	"caspian/pkg/caspian"
)

var version = "0.4.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "caspianctl",
		Short: "Integer spiking neural network simulator",
		Long: `caspianctl manages integer spiking networks and drives the
event-driven simulator: network generation, pruning, export, throughput
benchmarks, and parallel batch inference.`,
	}

	rootCmd.PersistentFlags().String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	rootCmd.PersistentFlags().String("db-path", "caspian.db", "sqlite database path")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRandomCmd(),
		newImportCmd(),
		newInfoCmd(),
		newPruneCmd(),
		newExportCmd(),
		newBenchCmd(),
		newPredictCmd(),
		newNetworksCmd(),
		newRunsCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("caspianctl version %s\n", version)
		},
	}
}

func openClient(cmd *cobra.Command) (*caspian.Client, error) {
	storeKind, _ := cmd.Flags().GetString("store")
	dbPath, _ := cmd.Flags().GetString("db-path")
	return caspian.NewClient(context.Background(), caspian.Options{
		StoreKind: storeKind,
		DBPath:    dbPath,
	})
}

func newNetworksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "networks",
		Short: "List stored networks",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := openClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			records, err := client.Networks(context.Background())
			if err != nil {
				return err
			}
			for _, record := range records {
				fmt.Printf("%-30s %s\n", record.Name, record.CreatedAtUTC)
			}
			return nil
		},
	}
}

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored inference runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")

			client, err := openClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			runs, err := client.Runs(context.Background(), limit)
			if err != nil {
				return err
			}
			for _, run := range runs {
				fmt.Printf("%s  %s  networks=%d samples=%d steps=%d\n",
					run.ID, run.CreatedAtUTC, len(run.Networks), run.Samples, run.Steps)
				for i, acc := range run.Accuracies {
					fmt.Printf("  %-30s accuracy=%.4f\n", run.Networks[i], acc)
				}
			}
			return nil
		},
	}
	cmd.Flags().Int("limit", 10, "maximum runs to list")
	return cmd
}

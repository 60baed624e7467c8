package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"caspian/pkg/caspian"
)

func newPredictCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "predict <network>...",
		Short: "Run batch inference over stored networks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			dataPath, _ := cmd.Flags().GetString("data")
			labeled, _ := cmd.Flags().GetBool("labeled")
			steps, _ := cmd.Flags().GetInt("steps")
			workers, _ := cmd.Flags().GetInt("workers")
			encSpikes, _ := cmd.Flags().GetInt("encoder-spikes")
			encInterval, _ := cmd.Flags().GetInt("encoder-interval")
			encMin, _ := cmd.Flags().GetFloat64("encoder-min")
			encMax, _ := cmd.Flags().GetFloat64("encoder-max")
			encVariable, _ := cmd.Flags().GetString("encoder-variable")

			config, err := loadProcessorConfig(configPath)
			if err != nil {
				return err
			}

			samples, labels, err := loadSamples(dataPath, labeled)
			if err != nil {
				return err
			}

			client, err := openClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			summary, err := client.Predict(context.Background(), caspian.PredictRequest{
				NetworkNames: args,
				Config:       config,
				Encoder: caspian.EncoderSpec{
					Spikes:   encSpikes,
					Interval: encInterval,
					Min:      encMin,
					Max:      encMax,
					Variable: encVariable,
				},
				Samples: samples,
				Labels:  labels,
				Steps:   steps,
				Workers: workers,
			})
			if err != nil {
				return err
			}

			fmt.Printf("run %s\n", summary.RunID)
			for i, name := range args {
				fmt.Printf("%-30s predictions=%v", name, summary.Predictions[i])
				if summary.Accuracies != nil {
					fmt.Printf(" accuracy=%.4f", summary.Accuracies[i])
				}
				fmt.Println()
			}
			return nil
		},
	}
	cmd.Flags().String("config", "", "processor configuration YAML file")
	cmd.Flags().String("data", "", "sample matrix CSV file")
	cmd.Flags().Bool("labeled", false, "treat the last CSV column as the label")
	cmd.Flags().Int("steps", 50, "simulation steps per sample")
	cmd.Flags().Int("workers", 4, "worker thread count")
	cmd.Flags().Int("encoder-spikes", 8, "maximum spikes per feature")
	cmd.Flags().Int("encoder-interval", 1, "cycles between spikes")
	cmd.Flags().Float64("encoder-min", 0, "feature range minimum")
	cmd.Flags().Float64("encoder-max", 1, "feature range maximum")
	cmd.Flags().String("encoder-variable", "spikes", "modulated variable: spikes|interval")
	_ = cmd.MarkFlagRequired("data")
	return cmd
}

// loadProcessorConfig reads a YAML option map for the processor. An empty
// path selects the defaults.
func loadProcessorConfig(path string) (map[string]any, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var config map[string]any
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return config, nil
}

// loadSamples reads a CSV matrix of floats. With labeled set, the last column
// is split off as integer labels.
func loadSamples(path string, labeled bool) ([][]float64, []int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}

	var samples [][]float64
	var labels []int
	for i, row := range rows {
		features := make([]float64, 0, len(row))
		for _, cell := range row {
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, nil, fmt.Errorf("%s row %d: %w", path, i+1, err)
			}
			features = append(features, v)
		}
		if labeled {
			if len(features) < 2 {
				return nil, nil, fmt.Errorf("%s row %d: need at least one feature and a label", path, i+1)
			}
			labels = append(labels, int(features[len(features)-1]))
			features = features[:len(features)-1]
		}
		samples = append(samples, features)
	}
	if !labeled {
		return samples, nil, nil
	}
	return samples, labels, nil
}

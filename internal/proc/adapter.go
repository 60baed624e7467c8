package proc

import (
	"fmt"

	"caspian/internal/model"
	"caspian/internal/network"
)

// convertNetwork maps an external network into the internal representation,
// clamping every parameter to the processor's configured ranges.
func convertNetwork(ext *model.Network, cfg Config) (*network.Network, error) {
	if ext == nil {
		return nil, fmt.Errorf("%w: nil network", ErrInvalidArgument)
	}

	net := network.New(len(ext.Nodes))
	net.MaxThresh = uint16(cfg.MaxThreshold)

	for _, node := range ext.Nodes {
		threshold := clampInt(node.Threshold, cfg.MinThreshold, cfg.MaxThreshold)

		leak := -1
		if cfg.LeakEnable && node.Leak != nil && *node.Leak >= 0 {
			leak = clampInt(*node.Leak, maxInt(cfg.MinLeak, 0), cfg.MaxLeak)
		}

		delay := 0
		if node.Delay != nil {
			delay = clampInt(*node.Delay, cfg.MinAxonDelay, cfg.MaxAxonDelay)
		}

		if err := net.AddNeuron(node.ID, int16(threshold), int8(leak), uint8(delay)); err != nil {
			return nil, fmt.Errorf("node %d: %w", node.ID, err)
		}

		if node.InputID >= 0 {
			if err := net.SetInput(node.ID, node.InputID); err != nil {
				return nil, err
			}
		}
		if node.OutputID >= 0 {
			if err := net.SetOutput(node.ID, node.OutputID); err != nil {
				return nil, err
			}
		}
	}

	for _, edge := range ext.Edges {
		weight := clampInt(edge.Weight, cfg.MinWeight, cfg.MaxWeight)

		delay := 0
		if edge.Delay != nil {
			delay = clampInt(*edge.Delay, cfg.MinSynapseDelay, cfg.MaxSynapseDelay)
		}

		if err := net.AddSynapse(edge.From, edge.To, int16(weight), uint8(delay)); err != nil {
			return nil, fmt.Errorf("edge %d -> %d: %w", edge.From, edge.To, err)
		}
	}

	return net, nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

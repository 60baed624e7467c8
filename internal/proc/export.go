package proc

import (
	"caspian/internal/model"
	"caspian/internal/network"
)

// ToModel converts an internal network back into the external representation.
// Node order follows the network's neuron insertion order.
func ToModel(net *network.Network) *model.Network {
	ext := &model.Network{}

	for _, id := range net.NeuronList() {
		nn := net.NeuronPtr(id)
		node := model.Node{
			ID:        nn.ID,
			Threshold: int(nn.Threshold),
			InputID:   nn.InputID,
			OutputID:  nn.OutputID,
		}
		if nn.Leak >= 0 {
			leak := int(nn.Leak)
			node.Leak = &leak
		}
		if nn.Delay > 0 {
			delay := int(nn.Delay)
			node.Delay = &delay
		}
		ext.Nodes = append(ext.Nodes, node)
	}

	for _, sp := range net.SynapseList() {
		s, err := net.Synapse(sp.From, sp.To)
		if err != nil {
			continue
		}
		edge := model.Edge{From: sp.From, To: sp.To, Weight: int(s.Weight)}
		if s.Delay > 0 {
			delay := int(s.Delay)
			edge.Delay = &delay
		}
		ext.Edges = append(ext.Edges, edge)
	}

	return ext
}

package network

import (
	"encoding/json"
	"fmt"
	"strings"

	"caspian/internal/constants"
)

type jsonConfig struct {
	SoftReset    bool   `json:"soft_reset"`
	MaxSynDelay  uint8  `json:"max_syn_delay"`
	MaxAxonDelay uint8  `json:"max_axon_delay"`
	MaxThreshold uint16 `json:"max_threshold"`
}

type jsonNeuron struct {
	ID        *uint32 `json:"id"`
	Threshold *int16  `json:"threshold"`
	Leak      *int8   `json:"leak,omitempty"`
	Delay     *uint8  `json:"delay,omitempty"`
}

type jsonSynapse struct {
	From   *uint32 `json:"from"`
	To     *uint32 `json:"to"`
	Weight *int16  `json:"weight"`
	Delay  *uint8  `json:"delay,omitempty"`
}

type jsonNetwork struct {
	Version  *float64       `json:"version"`
	Inputs   []int64        `json:"inputs"`
	Outputs  []int64        `json:"outputs"`
	Config   *jsonConfig    `json:"config"`
	Neurons  *[]jsonNeuron  `json:"neurons"`
	Synapses *[]jsonSynapse `json:"synapses"`
}

// ToJSON serializes the network into its canonical JSON form.
func (n *Network) ToJSON() ([]byte, error) {
	payload := jsonNetwork{
		Version: ptr(constants.FormatVersion),
		Inputs:  append([]int64{}, n.inputs...),
		Outputs: append([]int64{}, n.outputs...),
		Config: &jsonConfig{
			SoftReset:    n.SoftReset,
			MaxSynDelay:  n.MaxSynDelay,
			MaxAxonDelay: n.MaxAxonDelay,
			MaxThreshold: n.MaxThresh,
		},
	}

	neurons := make([]jsonNeuron, 0, len(n.neuronIDs))
	for _, id := range n.neuronIDs {
		nn := n.neurons[id]
		neurons = append(neurons, jsonNeuron{
			ID:        ptr(nn.ID),
			Threshold: ptr(nn.Threshold),
			Leak:      ptr(nn.Leak),
			Delay:     ptr(nn.Delay),
		})
	}
	payload.Neurons = &neurons

	synapses := make([]jsonSynapse, 0, len(n.synapsePairs))
	for _, sp := range n.synapsePairs {
		s := n.neurons[sp.To].Synapses[sp.From]
		synapses = append(synapses, jsonSynapse{
			From:   ptr(sp.From),
			To:     ptr(sp.To),
			Weight: ptr(s.Weight),
			Delay:  ptr(s.Delay),
		})
	}
	payload.Synapses = &synapses

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSerialization, err)
	}
	return data, nil
}

// FromJSON replaces the network's contents with the serialized form. The
// payload must declare at least the supported format version.
func (n *Network) FromJSON(data []byte) error {
	var payload jsonNetwork
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("%w: %v", ErrBadSerialization, err)
	}
	if payload.Version == nil || payload.Neurons == nil || payload.Synapses == nil {
		return fmt.Errorf("%w: version, neurons, and synapses are required", ErrBadSerialization)
	}
	if *payload.Version < constants.FormatVersion {
		return fmt.Errorf("%w: got %.2f, want >= %.2f", ErrUnsupportedVersion, *payload.Version, constants.FormatVersion)
	}

	n.PurgeElements()

	if payload.Config != nil {
		n.SoftReset = payload.Config.SoftReset
		n.MaxSynDelay = payload.Config.MaxSynDelay
		n.MaxAxonDelay = payload.Config.MaxAxonDelay
		n.MaxThresh = payload.Config.MaxThreshold
	}

	for i, jn := range *payload.Neurons {
		if jn.ID == nil || jn.Threshold == nil {
			return fmt.Errorf("%w: neuron %d missing id or threshold", ErrBadSerialization, i)
		}
		leak := int8(-1)
		if jn.Leak != nil {
			leak = *jn.Leak
		}
		delay := uint8(0)
		if jn.Delay != nil {
			delay = *jn.Delay
		}
		if err := n.AddNeuron(*jn.ID, *jn.Threshold, leak, delay); err != nil {
			return err
		}
	}

	for i, js := range *payload.Synapses {
		if js.From == nil || js.To == nil || js.Weight == nil {
			return fmt.Errorf("%w: synapse %d missing from, to, or weight", ErrBadSerialization, i)
		}
		delay := uint8(0)
		if js.Delay != nil {
			delay = *js.Delay
		}
		if err := n.AddSynapse(*js.From, *js.To, *js.Weight, delay); err != nil {
			return err
		}
	}

	for idx, id := range payload.Inputs {
		if id < 0 {
			n.growInputs(idx)
			continue
		}
		if err := n.SetInput(uint32(id), idx); err != nil {
			return err
		}
	}
	for idx, id := range payload.Outputs {
		if id < 0 {
			n.growOutputs(idx)
			continue
		}
		if err := n.SetOutput(uint32(id), idx); err != nil {
			return err
		}
	}

	return nil
}

func (n *Network) growInputs(idx int) {
	for idx >= len(n.inputs) {
		n.inputs = append(n.inputs, -1)
	}
}

func (n *Network) growOutputs(idx int) {
	for idx >= len(n.outputs) {
		n.outputs = append(n.outputs, -1)
	}
}

// ToGML renders the network in GML for inspection with graph tooling. The
// output is not round-trippable.
func (n *Network) ToGML() string {
	var b strings.Builder

	b.WriteString("graph [\n")
	b.WriteString("  comment \"Automatically generated GML\"\n")
	b.WriteString("  label \"network\"\n")
	b.WriteString("  directed 1\n")

	for _, id := range n.neuronIDs {
		nn := n.neurons[id]
		fmt.Fprintf(&b, "  node [\n    id %d\n    label %d\n    threshold %d\n  ]\n", nn.ID, nn.ID, nn.Threshold)
	}

	for _, sp := range n.synapsePairs {
		s := n.neurons[sp.To].Synapses[sp.From]
		fmt.Fprintf(&b, "  edge [\n    source %d\n    target %d\n    weight %d\n    delay %d\n  ]\n", sp.From, sp.To, s.Weight, s.Delay)
	}

	b.WriteString("]\n")
	return b.String()
}

func ptr[T any](v T) *T { return &v }

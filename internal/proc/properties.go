package proc

import "caspian/internal/constants"

// Properties are the consumer-visible processor contracts. Consumers rely on
// these exact values; they are constants of the implementation, not hints.
type Properties struct {
	InputScalingValue  int
	BinaryInput        bool
	SpikeRasterInfo    bool
	Plasticity         string
	ThresholdInclusive bool
	IntegrationDelay   bool
	RunTimeInclusive   bool
}

// ProcessorProperties returns the processor contract values.
func ProcessorProperties() Properties {
	return Properties{
		InputScalingValue:  int(constants.MaxDeviceInput),
		BinaryInput:        true,
		SpikeRasterInfo:    true,
		Plasticity:         "none",
		ThresholdInclusive: false,
		IntegrationDelay:   true,
		RunTimeInclusive:   false,
	}
}

// PropertyRange describes one configurable node or edge property and its
// inclusive bounds under the active configuration.
type PropertyRange struct {
	Name string
	Min  int
	Max  int
}

// NodeProperties returns the neuron property ranges the processor accepts.
func (p *Processor) NodeProperties() []PropertyRange {
	return []PropertyRange{
		{Name: "Threshold", Min: p.cfg.MinThreshold, Max: p.cfg.MaxThreshold},
		{Name: "Leak", Min: p.cfg.MinLeak, Max: p.cfg.MaxLeak},
		{Name: "Delay", Min: p.cfg.MinAxonDelay, Max: p.cfg.MaxAxonDelay},
	}
}

// EdgeProperties returns the synapse property ranges the processor accepts.
func (p *Processor) EdgeProperties() []PropertyRange {
	return []PropertyRange{
		{Name: "Weight", Min: p.cfg.MinWeight, Max: p.cfg.MaxWeight},
		{Name: "Delay", Min: p.cfg.MinSynapseDelay, Max: p.cfg.MaxSynapseDelay},
	}
}

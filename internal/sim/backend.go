// Package sim implements the event-driven cycle engine that executes integer
// spiking networks, along with the backend capability set it satisfies.
package sim

import (
	"errors"

	"caspian/internal/network"
)

// ErrShapeMismatch reports a multi-network configuration whose networks do
// not share input and output counts.
var ErrShapeMismatch = errors.New("network shape mismatch")

// InputFire is an externally injected weight addressed by input channel
// index. The index, not a resolved neuron id, is carried so that one fire can
// be broadcast to every loaded network in multi-network mode.
type InputFire struct {
	Input  int
	Weight int16
	Time   uint64
}

// Backend is the capability set a simulation engine exposes to the processor.
// The event simulator is the only implementation in this package; hardware
// devices satisfy the same contract.
type Backend interface {
	// Configure loads a single network, replacing all engine state. A nil
	// network detaches the engine.
	Configure(net *network.Network) bool
	// ConfigureMulti loads several networks sharing input/output shape and
	// tags each network's output neurons with its batch index.
	ConfigureMulti(nets []*network.Network) error

	// ApplyInput queues a weight at an input channel, offset from the current
	// engine time.
	ApplyInput(input int, weight int16, t uint64)
	// Simulate runs the given number of cycles. It returns false when no
	// network is loaded.
	Simulate(steps uint64) bool
	// Update refreshes every neuron's leak state to the current time.
	Update() bool

	// Metric returns a named engine counter, resetting it on read.
	Metric(name string) float64
	// Time returns the current engine time.
	Time() uint64

	Reset()
	ClearActivity()

	// TrackAftertime suppresses monitor recording for an output until the
	// given relative time. TrackTiming enables precise fire-time recording.
	TrackAftertime(output int, aftertime uint64) bool
	TrackTiming(output int, track bool) bool

	// Output monitor accessors; networkID selects the batch slot in
	// multi-network mode and must be 0 otherwise.
	OutputCount(output, networkID int) int
	LastOutputTime(output, networkID int) int64
	OutputValues(output, networkID int) []uint64

	// All-neuron spike collection (single-network mode).
	CollectAllSpikes(collect bool)
	TrackNeuronEvents(id uint32, track bool)
	AllSpikeCounts() map[uint32]int
	AllLastFires() map[uint32]int64
	AllSpikes() map[uint32][]uint64

	// Network returns the loaded network at a batch index, or nil.
	Network(idx int) *network.Network
}

// Package proc provides the processor façade: it validates a configuration,
// constructs the event engine, converts external networks into the internal
// form, and multiplexes spike application, runs, and output access across one
// or many loaded networks.
package proc

import (
	"fmt"
	"log/slog"
	"math"
	"os"

	"caspian/internal/logging"
	"caspian/internal/model"
	"caspian/internal/network"
	"caspian/internal/sim"
)

// Processor owns one engine instance and the networks loaded into it. A
// processor is not safe for concurrent use; the batch-inference pool gives
// each worker its own.
type Processor struct {
	logger *slog.Logger
	dev    sim.Backend
	cfg    Config

	ext        *model.Network
	exts       []*model.Network
	loaded     bool
	multi      bool
	numOutputs int
}

// New validates the raw configuration and constructs the engine it names.
func New(raw map[string]any) (*Processor, error) {
	cfg, err := parseConfig(raw)
	if err != nil {
		return nil, err
	}

	level := "info"
	if cfg.Debug {
		level = "debug"
	}
	logger := logging.NewLogger(level, os.Stderr)

	switch cfg.Backend {
	case BackendEventSimulator:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedBackend, cfg.Backend)
	}

	return &Processor{
		logger: logger,
		dev:    sim.New(logger),
		cfg:    cfg,
	}, nil
}

// Name identifies the processor implementation.
func (p *Processor) Name() string { return "caspian" }

// Configuration returns the resolved configuration, defaults included.
func (p *Processor) Configuration() map[string]any { return p.cfg.Map() }

// Properties returns the consumer-visible processor contracts.
func (p *Processor) Properties() Properties { return ProcessorProperties() }

// LoadNetwork converts an external network and configures the engine with it.
func (p *Processor) LoadNetwork(ext *model.Network) error {
	net, err := convertNetwork(ext, p.cfg)
	if err != nil {
		p.unload()
		return err
	}

	p.ext = ext
	p.exts = nil
	p.loaded = true
	p.multi = false
	p.numOutputs = net.NumOutputs()
	p.dev.Configure(net)
	return nil
}

// LoadNetworks converts several external networks sharing shape and
// configures the engine in multi-network batch mode.
func (p *Processor) LoadNetworks(exts []*model.Network) error {
	nets := make([]*network.Network, 0, len(exts))
	for i, ext := range exts {
		net, err := convertNetwork(ext, p.cfg)
		if err != nil {
			p.unload()
			return fmt.Errorf("network %d: %w", i, err)
		}
		nets = append(nets, net)
	}

	if err := p.dev.ConfigureMulti(nets); err != nil {
		p.unload()
		return err
	}

	p.ext = nil
	p.exts = exts
	p.loaded = true
	p.multi = true
	if len(nets) > 0 {
		p.numOutputs = nets[0].NumOutputs()
	}
	return nil
}

func (p *Processor) unload() {
	p.ext = nil
	p.exts = nil
	p.loaded = false
	p.multi = false
	p.numOutputs = 0
	p.dev.Configure(nil)
}

// ApplySpike queues one input spike. The normalized value in [0, 1] becomes
// an integer weight of round(value * 255); the fractional time is truncated
// to a cycle and offset by the current engine time.
func (p *Processor) ApplySpike(s model.Spike) error {
	if !p.loaded {
		return fmt.Errorf("%w: apply spike", ErrNotLoaded)
	}
	weight := int16(math.Round(s.Value * float64(p.Properties().InputScalingValue)))
	p.dev.ApplyInput(int(s.ID), weight, uint64(math.Floor(s.Time)))
	return nil
}

// ApplySpikes queues a batch of input spikes.
func (p *Processor) ApplySpikes(spikes []model.Spike) error {
	for _, s := range spikes {
		if err := p.ApplySpike(s); err != nil {
			return err
		}
	}
	return nil
}

// ApplyInputs queues raw integer weights given as parallel arrays of input
// index, weight, and relative time.
func (p *Processor) ApplyInputs(inputs []int, weights []int, times []uint64) error {
	if !p.loaded {
		return fmt.Errorf("%w: apply inputs", ErrNotLoaded)
	}
	if len(inputs) != len(weights) || len(weights) != len(times) {
		return fmt.Errorf("%w: inputs=%d weights=%d times=%d",
			ErrInvalidArgument, len(inputs), len(weights), len(times))
	}
	for i := range inputs {
		p.dev.ApplyInput(inputs[i], int16(weights[i]), times[i])
	}
	return nil
}

// ApplyDVSEvents queues a DVS event batch given as parallel coordinate
// arrays. The input index is y*width + x, plus polarity*width*height when
// polarity is used; every event carries the maximum device input weight.
func (p *Processor) ApplyDVSEvents(x, y []int, t []float64, pol []int, width, height int, usePolarity bool) error {
	if !p.loaded {
		return fmt.Errorf("%w: apply dvs events", ErrNotLoaded)
	}
	if len(x) != len(y) || len(y) != len(t) || (usePolarity && len(t) != len(pol)) {
		return fmt.Errorf("%w: x=%d y=%d t=%d p=%d", ErrLengthMismatch, len(x), len(y), len(t), len(pol))
	}

	frameSize := width * height
	maxInput := int16(p.Properties().InputScalingValue)
	for i := range x {
		nid := y[i]*width + x[i]
		if usePolarity {
			nid += pol[i] * frameSize
		}
		p.dev.ApplyInput(nid, maxInput, uint64(math.Floor(t[i])))
	}
	return nil
}

// Run simulates the loaded network(s) for the given duration in cycles.
func (p *Processor) Run(duration float64) error {
	if !p.loaded {
		return fmt.Errorf("%w: run", ErrNotLoaded)
	}
	if !p.dev.Simulate(uint64(duration)) {
		return fmt.Errorf("%w: run", ErrNotLoaded)
	}
	return nil
}

// Time returns the current engine time.
func (p *Processor) Time() float64 {
	return float64(p.dev.Time())
}

// Metric returns a named engine counter, resetting it on read.
func (p *Processor) Metric(name string) float64 {
	return p.dev.Metric(name)
}

// TrackAftertime suppresses output recording before the given relative time.
func (p *Processor) TrackAftertime(output int, aftertime float64) error {
	if !p.loaded {
		return fmt.Errorf("%w: track aftertime", ErrNotLoaded)
	}
	if !p.dev.TrackAftertime(output, uint64(aftertime)) {
		p.logger.Warn("no such output channel", "output", output)
	}
	return nil
}

// TrackOutput enables precise fire-time recording for an output channel.
func (p *Processor) TrackOutput(output int, track bool) error {
	if !p.loaded {
		return fmt.Errorf("%w: track output", ErrNotLoaded)
	}
	if !p.dev.TrackTiming(output, track) {
		p.logger.Warn("no such output channel", "output", output)
	}
	return nil
}

// OutputLastFire returns the relative time of the last fire on an output, or
// -1 when it has not fired.
func (p *Processor) OutputLastFire(output, networkID int) float64 {
	return float64(p.dev.LastOutputTime(output, networkID))
}

// OutputCount returns the number of fires recorded on an output in the last
// run.
func (p *Processor) OutputCount(output, networkID int) int {
	return p.dev.OutputCount(output, networkID)
}

// OutputVector returns the precise fire times recorded on an output.
func (p *Processor) OutputVector(output, networkID int) []float64 {
	times := p.dev.OutputValues(output, networkID)
	out := make([]float64, len(times))
	for i, t := range times {
		out[i] = float64(t)
	}
	return out
}

// OutputLastFires returns the last-fire time of every output channel.
func (p *Processor) OutputLastFires(networkID int) []float64 {
	out := make([]float64, p.numOutputs)
	for i := range out {
		out[i] = p.OutputLastFire(i, networkID)
	}
	return out
}

// OutputCounts returns the fire count of every output channel.
func (p *Processor) OutputCounts(networkID int) []int {
	out := make([]int, p.numOutputs)
	for i := range out {
		out[i] = p.OutputCount(i, networkID)
	}
	return out
}

// OutputVectors returns the precise fire times of every output channel.
func (p *Processor) OutputVectors(networkID int) [][]float64 {
	out := make([][]float64, p.numOutputs)
	for i := range out {
		out[i] = p.OutputVector(i, networkID)
	}
	return out
}

// TrackSpikes enables spike-raster collection for every neuron.
func (p *Processor) TrackSpikes() {
	p.dev.CollectAllSpikes(true)
}

// TrackNeuronEvents enables exact-time recording for a single neuron.
func (p *Processor) TrackNeuronEvents(id uint32, track bool) {
	p.dev.TrackNeuronEvents(id, track)
}

// NeuronCounts returns per-neuron fire counts in the host network's node
// order. Requires TrackSpikes or TrackNeuronEvents.
func (p *Processor) NeuronCounts(networkID int) []int {
	nodes := p.canonicalNodes(networkID)
	counts := p.dev.AllSpikeCounts()
	out := make([]int, len(nodes))
	for i, node := range nodes {
		out[i] = counts[node.ID]
	}
	return out
}

// NeuronLastFires returns per-neuron last-fire times in the host network's
// node order, -1 for neurons that have not fired.
func (p *Processor) NeuronLastFires(networkID int) []float64 {
	nodes := p.canonicalNodes(networkID)
	last := p.dev.AllLastFires()
	out := make([]float64, len(nodes))
	for i, node := range nodes {
		if t, ok := last[node.ID]; ok {
			out[i] = float64(t)
		} else {
			out[i] = -1
		}
	}
	return out
}

// NeuronVectors returns per-neuron recorded fire times in the host network's
// node order.
func (p *Processor) NeuronVectors(networkID int) [][]float64 {
	nodes := p.canonicalNodes(networkID)
	spikes := p.dev.AllSpikes()
	out := make([][]float64, len(nodes))
	for i, node := range nodes {
		times := spikes[node.ID]
		row := make([]float64, len(times))
		for j, t := range times {
			row[j] = float64(t)
		}
		out[i] = row
	}
	return out
}

// NeuronCharges returns each neuron's current charge in the host network's
// node order.
func (p *Processor) NeuronCharges(networkID int) []float64 {
	nodes := p.canonicalNodes(networkID)
	net := p.dev.Network(networkID)
	out := make([]float64, len(nodes))
	if net == nil {
		return out
	}
	for i, node := range nodes {
		if nn := net.NeuronPtr(node.ID); nn != nil {
			out[i] = float64(nn.Charge)
		}
	}
	return out
}

// SynapseWeights returns parallel arrays of pre id, post id, and weight for
// every synapse of a loaded network.
func (p *Processor) SynapseWeights(networkID int) (pres, posts []uint32, weights []float64) {
	net := p.dev.Network(networkID)
	if net == nil {
		return nil, nil, nil
	}
	for _, sp := range net.SynapseList() {
		s, err := net.Synapse(sp.From, sp.To)
		if err != nil {
			continue
		}
		pres = append(pres, sp.From)
		posts = append(posts, sp.To)
		weights = append(weights, float64(s.Weight))
	}
	return pres, posts, weights
}

// TotalNeuronCounts sums the collected per-neuron fire counts.
func (p *Processor) TotalNeuronCounts(networkID int) int64 {
	var total int64
	for _, c := range p.NeuronCounts(networkID) {
		total += int64(c)
	}
	return total
}

func (p *Processor) canonicalNodes(networkID int) []model.Node {
	switch {
	case !p.loaded:
		return nil
	case p.multi:
		if networkID < 0 || networkID >= len(p.exts) {
			p.logger.Warn("no such network", "network_id", networkID)
			return nil
		}
		return p.exts[networkID].Nodes
	default:
		if networkID != 0 {
			p.logger.Warn("no such network", "network_id", networkID)
			return nil
		}
		return p.ext.Nodes
	}
}

// Clear unloads the network(s) and detaches the engine.
func (p *Processor) Clear() {
	p.unload()
}

// ClearActivity discards dynamic state but keeps the network(s) loaded and
// the monitor tracking settings intact.
func (p *Processor) ClearActivity() error {
	if !p.loaded {
		return fmt.Errorf("%w: clear activity", ErrNotLoaded)
	}
	p.dev.ClearActivity()
	return nil
}

// Reset discards dynamic state and monitor settings, keeping the network(s)
// loaded.
func (p *Processor) Reset() error {
	if !p.loaded {
		return fmt.Errorf("%w: reset", ErrNotLoaded)
	}
	p.dev.Reset()
	return nil
}

// InternalNetwork exposes the converted internal network, mainly for tests
// and benchmark tooling.
func (p *Processor) InternalNetwork(networkID int) *network.Network {
	return p.dev.Network(networkID)
}

// Backend exposes the underlying engine.
func (p *Processor) Backend() sim.Backend { return p.dev }

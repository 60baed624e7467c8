package sim

import (
	"fmt"
	"log/slog"
	"sort"

	"caspian/internal/constants"
	"caspian/internal/network"
)

// fireEvent is a scheduled delivery of a synapse's weight into its
// post-synaptic neuron. Its time is implicit in which ring bucket holds it.
type fireEvent struct {
	syn  *network.Synapse
	post *network.Neuron
	net  *network.Network
}

type threshRef struct {
	n   *network.Neuron
	net *network.Network
}

// monitor accumulates output fires for one loaded network.
type monitor struct {
	fireCounts    []int
	lastFireTimes []int64
	recordedFires [][]uint64
}

func newMonitor(outputs int) monitor {
	m := monitor{
		fireCounts:    make([]int, outputs),
		lastFireTimes: make([]int64, outputs),
		recordedFires: make([][]uint64, outputs),
	}
	for i := range m.lastFireTimes {
		m.lastFireTimes[i] = -1
	}
	return m
}

func (m *monitor) clear() {
	for i := range m.fireCounts {
		m.fireCounts[i] = 0
		m.lastFireTimes[i] = -1
		m.recordedFires[i] = m.recordedFires[i][:0]
	}
}

// Simulator executes loaded networks one cycle at a time. Fires scheduled by
// synaptic and axonal delay live in a power-of-two ring of buckets indexed by
// time & (P-1); each bucket's capacity is reused across the run. A Simulator
// is single-threaded: a Simulate call holds exclusive access to the loaded
// networks until it returns.
type Simulator struct {
	logger *slog.Logger

	nets         []*network.Network
	multi        bool
	inputNeurons [][]*network.Neuron

	fires       [][]fireEvent
	threshCheck []threshRef
	inputFires  []InputFire

	dlyMask   uint64
	softReset bool

	monitors         []monitor
	monitorAftertime []int64
	monitorPrecise   []bool

	metricAccumulates int
	metricFires       int
	metricTimesteps   uint64

	runStartTime uint64
	netTime      uint64

	collectAll  bool
	allEvents   bool
	trackNeuron map[uint32]bool
	allCounts   map[uint32]int
	allLast     map[uint32]int64
	allSpikes   map[uint32][]uint64
}

// New creates a simulator with no network loaded. A nil logger selects the
// process default.
func New(logger *slog.Logger) *Simulator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Simulator{
		logger:      logger,
		dlyMask:     0x1,
		trackNeuron: make(map[uint32]bool),
	}
}

// Configure loads a single network, replacing all engine state. A nil network
// detaches the engine.
func (s *Simulator) Configure(net *network.Network) bool {
	s.detach()

	if net == nil {
		return true
	}

	s.nets = []*network.Network{net}
	s.multi = false
	s.softReset = net.SoftReset
	s.buildInputMaps()
	s.sizeMonitors(net.NumOutputs(), 1)
	s.sizeRing(int(net.MaxAxonDelay) + int(net.MaxSynDelay))
	return true
}

// ConfigureMulti loads several networks sharing input and output shape. Each
// network's output neurons are tagged with the network's batch index so that
// fires route to the right monitor. The first network is the shape reference.
func (s *Simulator) ConfigureMulti(nets []*network.Network) error {
	if len(nets) == 0 {
		return fmt.Errorf("%w: no networks given", ErrShapeMismatch)
	}

	ref := nets[0]
	totalDelay := 0
	for i, net := range nets {
		if net.NumInputs() != ref.NumInputs() || net.NumOutputs() != ref.NumOutputs() {
			return fmt.Errorf("%w: network %d has shape %dx%d, want %dx%d",
				ErrShapeMismatch, i, net.NumInputs(), net.NumOutputs(), ref.NumInputs(), ref.NumOutputs())
		}
		if d := int(net.MaxAxonDelay) + int(net.MaxSynDelay); d > totalDelay {
			totalDelay = d
		}
	}

	s.detach()
	s.nets = append(s.nets, nets...)
	s.multi = true
	s.softReset = ref.SoftReset

	for ni, net := range nets {
		for oi := 0; oi < net.NumOutputs(); oi++ {
			if id := net.Output(oi); id >= 0 {
				if nn := net.NeuronPtr(uint32(id)); nn != nil {
					nn.Tag = ni
				}
			}
		}
	}

	s.buildInputMaps()
	s.sizeMonitors(ref.NumOutputs(), len(nets))
	s.sizeRing(totalDelay)
	return nil
}

func (s *Simulator) detach() {
	s.netTime = 0
	s.runStartTime = 0
	s.nets = nil
	s.multi = false
	s.inputNeurons = nil
	s.inputFires = s.inputFires[:0]
	s.threshCheck = s.threshCheck[:0]
	s.monitors = nil
	s.monitorAftertime = nil
	s.monitorPrecise = nil
	for i := range s.fires {
		s.fires[i] = s.fires[i][:0]
	}
	s.clearAllSpikeLogs()
}

func (s *Simulator) buildInputMaps() {
	s.inputNeurons = make([][]*network.Neuron, len(s.nets))
	for ni, net := range s.nets {
		table := make([]*network.Neuron, net.NumInputs())
		for i := range table {
			if nn, ok := net.InputNeuron(i); ok {
				table[i] = nn
			}
		}
		s.inputNeurons[ni] = table
	}
}

func (s *Simulator) sizeMonitors(outputs, networks int) {
	s.monitors = make([]monitor, networks)
	for i := range s.monitors {
		s.monitors[i] = newMonitor(outputs)
	}
	s.monitorAftertime = make([]int64, outputs)
	for i := range s.monitorAftertime {
		s.monitorAftertime[i] = -1
	}
	s.monitorPrecise = make([]bool, outputs)
}

func (s *Simulator) sizeRing(totalDelay int) {
	size := int(constants.NextPowOfTwo(uint16(totalDelay) + 1))
	s.dlyMask = uint64(size - 1)
	for len(s.fires) < size {
		s.fires = append(s.fires, nil)
	}
	s.fires = s.fires[:size]
}

// refreshNeuron applies the pending exponential leak to a neuron touched for
// the first time in the current cycle. The charge is decayed by magnitude and
// the sign restored afterwards, so negative charges decay toward zero
// symmetrically with positive ones.
func (s *Simulator) refreshNeuron(n *network.Neuron) {
	imm := n.Charge

	if n.Leak > -1 && s.netTime > n.LastEvent {
		t := s.netTime - n.LastEvent
		shamt := t >> uint(n.Leak)
		tMasked := t & ((uint64(1) << uint(n.Leak)) - 1)

		neg := imm < 0
		if neg {
			imm = -imm
		}

		if tMasked != 0 {
			compIdx := ((uint64(1) << uint(n.Leak)) - tMasked) << (uint(constants.MaxLeak) - uint(n.Leak))
			imm = (imm * constants.LeakComp[compIdx]) >> constants.CompBits
		}

		imm >>= shamt
		if neg {
			imm = -imm
		}
	}

	n.LastEvent = s.netTime
	n.Charge = clampCharge(imm)
}

// deliver accumulates a weight into a neuron and queues it for a threshold
// check when the charge crosses threshold for the first time this cycle.
func (s *Simulator) deliver(n *network.Neuron, net *network.Network, w int16) {
	if n.LastEvent != s.netTime {
		s.refreshNeuron(n)
	}

	n.Charge = clampCharge(n.Charge + int32(w))
	s.metricAccumulates++

	if n.Charge > int32(n.Threshold) && !n.TCheck {
		s.threshCheck = append(s.threshCheck, threshRef{n: n, net: net})
		n.TCheck = true
	}
}

// thresholdCheck decides whether a queued neuron actually fires. The tcheck
// flag is dropped before the decision so a later accumulation can requeue the
// neuron within the same run.
func (s *Simulator) thresholdCheck(tr threshRef) {
	n := tr.n
	n.TCheck = false

	if n.Charge <= int32(n.Threshold) {
		return
	}

	s.metricFires++

	if s.softReset {
		n.Charge -= int32(n.Threshold)
	} else {
		n.Charge = 0
	}

	for _, to := range n.Outputs {
		post := tr.net.NeuronPtr(to)
		if post == nil {
			continue
		}
		syn := post.Synapses[n.ID]
		if syn == nil {
			continue
		}
		idx := constants.DelayBucket(s.netTime+uint64(syn.Delay)+uint64(n.Delay)+1, s.dlyMask)
		s.fires[idx] = append(s.fires[idx], fireEvent{syn: syn, post: post, net: tr.net})
	}

	relTime := s.netTime - s.runStartTime

	if s.collectAll {
		s.allCounts[n.ID]++
		s.allLast[n.ID] = int64(relTime)
		if s.allEvents || s.trackNeuron[n.ID] {
			s.allSpikes[n.ID] = append(s.allSpikes[n.ID], relTime)
		}
	}

	if n.OutputID >= 0 && n.OutputID < len(s.monitorAftertime) {
		oid := n.OutputID
		if int64(relTime) >= s.monitorAftertime[oid] {
			mi := 0
			if s.multi && n.Tag >= 0 {
				mi = n.Tag
			}
			m := &s.monitors[mi]
			m.fireCounts[oid]++
			m.lastFireTimes[oid] = int64(relTime)
			if s.monitorPrecise[oid] {
				m.recordedFires[oid] = append(m.recordedFires[oid], relTime)
			}
		}
	}
}

// doCycle runs one timestep: pending input fires first, then the ring bucket
// for this cycle, then all queued threshold checks.
func (s *Simulator) doCycle() {
	for len(s.inputFires) > 0 && s.inputFires[len(s.inputFires)-1].Time == s.netTime {
		e := s.inputFires[len(s.inputFires)-1]
		s.inputFires = s.inputFires[:len(s.inputFires)-1]

		for ni, net := range s.nets {
			if e.Input < 0 || e.Input >= len(s.inputNeurons[ni]) {
				continue
			}
			if n := s.inputNeurons[ni][e.Input]; n != nil {
				s.deliver(n, net, e.Weight)
			}
		}
	}

	idx := constants.DelayBucket(s.netTime, s.dlyMask)
	bucket := s.fires[idx]
	for i := 0; i < len(bucket); i++ {
		e := bucket[i]
		s.deliver(e.post, e.net, e.syn.Weight)
	}
	s.fires[idx] = s.fires[idx][:0]

	for i := 0; i < len(s.threshCheck); i++ {
		s.thresholdCheck(s.threshCheck[i])
	}
	s.threshCheck = s.threshCheck[:0]
}

// ApplyInput queues a weight at an input channel, offset from the current
// engine time. The input index is resolved per network at delivery time. In
// multi-network mode the broadcast carries the implicit one-cycle input
// latency.
func (s *Simulator) ApplyInput(input int, weight int16, t uint64) {
	when := s.netTime + t
	if s.multi {
		when++
	}
	s.inputFires = append(s.inputFires, InputFire{Input: input, Weight: weight, Time: when})
}

// Simulate runs the engine for the given number of cycles. Pending input
// fires are stably sorted by descending time so the tail pops in temporal
// order; the per-run output monitors are cleared before the first cycle.
func (s *Simulator) Simulate(steps uint64) bool {
	if len(s.nets) == 0 {
		return false
	}

	// Descending by time so the tail pops in temporal order; the stable
	// ascending sort plus reversal keeps equal-time fires applied since the
	// previous Simulate call in caller order. Fires still pending from an
	// earlier call are already reversed, so equal-time fires among them pop
	// in reverse caller order.
	sort.SliceStable(s.inputFires, func(i, j int) bool {
		return s.inputFires[i].Time < s.inputFires[j].Time
	})
	for i, j := 0, len(s.inputFires)-1; i < j; i, j = i+1, j-1 {
		s.inputFires[i], s.inputFires[j] = s.inputFires[j], s.inputFires[i]
	}

	for i := range s.monitors {
		s.monitors[i].clear()
	}

	s.runStartTime = s.nets[0].Time()
	endTime := s.runStartTime + steps

	for s.netTime = s.runStartTime; s.netTime < endTime; s.netTime++ {
		s.doCycle()
	}

	for _, net := range s.nets {
		net.SetTime(endTime)
	}
	s.metricTimesteps += steps

	return true
}

// Update refreshes every neuron's leak state to the current engine time.
func (s *Simulator) Update() bool {
	if len(s.nets) == 0 {
		return false
	}
	for _, net := range s.nets {
		for _, id := range net.NeuronList() {
			s.refreshNeuron(net.NeuronPtr(id))
		}
	}
	return true
}

// Time returns the current engine time.
func (s *Simulator) Time() uint64 {
	return s.netTime
}

// Metric returns a named counter and resets it. fire_count,
// accumulate_count, and total_timesteps accumulate across runs until read;
// the plasticity and hardware counters are always zero on this backend.
func (s *Simulator) Metric(name string) float64 {
	switch name {
	case "fire_count":
		m := float64(s.metricFires)
		s.metricFires = 0
		return m
	case "accumulate_count":
		m := float64(s.metricAccumulates)
		s.metricAccumulates = 0
		return m
	case "total_timesteps":
		m := float64(s.metricTimesteps)
		s.metricTimesteps = 0
		return m
	case "depress_count", "potentiate_count", "active_clock_cycles":
		return 0
	default:
		s.logger.Warn("device metric is not implemented", "metric", name)
		return 0
	}
}

// Reset clears all dynamic state, including monitor aftertime and precise
// settings, and rewinds every loaded network to time zero.
func (s *Simulator) Reset() {
	s.clearState()
	for _, net := range s.nets {
		net.Reset()
	}
	for i := range s.monitorAftertime {
		s.monitorAftertime[i] = -1
	}
	for i := range s.monitorPrecise {
		s.monitorPrecise[i] = false
	}
}

// ClearActivity clears all dynamic state but keeps the monitor aftertime and
// precise-tracking settings.
func (s *Simulator) ClearActivity() {
	s.clearState()
	for _, net := range s.nets {
		net.ClearActivity()
	}
}

func (s *Simulator) clearState() {
	s.netTime = 0
	s.runStartTime = 0
	s.inputFires = s.inputFires[:0]
	s.threshCheck = s.threshCheck[:0]
	for i := range s.monitors {
		s.monitors[i].clear()
	}
	for i := range s.fires {
		s.fires[i] = s.fires[i][:0]
	}
	s.clearAllSpikeLogs()
}

// TrackAftertime suppresses monitor recording for an output until the given
// relative time within a run.
func (s *Simulator) TrackAftertime(output int, aftertime uint64) bool {
	if output < 0 || output >= len(s.monitorAftertime) {
		return false
	}
	s.monitorAftertime[output] = int64(aftertime)
	return true
}

// TrackTiming enables precise fire-time recording for an output.
func (s *Simulator) TrackTiming(output int, track bool) bool {
	if output < 0 || output >= len(s.monitorPrecise) {
		return false
	}
	s.monitorPrecise[output] = track
	return true
}

// OutputCount returns the number of monitored fires for an output in the last
// run, or -1 for an unknown output or network slot.
func (s *Simulator) OutputCount(output, networkID int) int {
	m := s.monitorFor(networkID)
	if m == nil || output < 0 || output >= len(m.fireCounts) {
		return -1
	}
	return m.fireCounts[output]
}

// LastOutputTime returns the relative time of the last monitored fire for an
// output, or -1 when it has not fired.
func (s *Simulator) LastOutputTime(output, networkID int) int64 {
	m := s.monitorFor(networkID)
	if m == nil || output < 0 || output >= len(m.lastFireTimes) {
		return -1
	}
	return m.lastFireTimes[output]
}

// OutputValues returns the recorded fire times for an output. Recording
// requires TrackTiming.
func (s *Simulator) OutputValues(output, networkID int) []uint64 {
	m := s.monitorFor(networkID)
	if m == nil || output < 0 || output >= len(m.recordedFires) {
		return nil
	}
	return append([]uint64(nil), m.recordedFires[output]...)
}

func (s *Simulator) monitorFor(networkID int) *monitor {
	if networkID < 0 || networkID >= len(s.monitors) {
		s.logger.Warn("no monitor for network", "network_id", networkID)
		return nil
	}
	return &s.monitors[networkID]
}

// CollectAllSpikes enables per-neuron fire recording, including exact times
// for every neuron. Only meaningful in single-network mode, where neuron ids
// are unique.
func (s *Simulator) CollectAllSpikes(collect bool) {
	if s.multi && collect {
		s.logger.Warn("all-spike collection is not supported in multi-network mode")
		return
	}
	s.collectAll = collect
	s.allEvents = collect
	if collect && s.allCounts == nil {
		s.allCounts = make(map[uint32]int)
		s.allLast = make(map[uint32]int64)
		s.allSpikes = make(map[uint32][]uint64)
	}
}

// TrackNeuronEvents enables per-neuron fire recording with exact times for a
// single neuron id; counts and last-fire times are kept for all neurons.
func (s *Simulator) TrackNeuronEvents(id uint32, track bool) {
	if s.multi && track {
		s.logger.Warn("all-spike collection is not supported in multi-network mode")
		return
	}
	s.trackNeuron[id] = track
	if track {
		s.collectAll = true
		if s.allCounts == nil {
			s.allCounts = make(map[uint32]int)
			s.allLast = make(map[uint32]int64)
			s.allSpikes = make(map[uint32][]uint64)
		}
	}
}

// AllSpikeCounts returns per-neuron fire counts accumulated since collection
// was enabled or last cleared.
func (s *Simulator) AllSpikeCounts() map[uint32]int {
	out := make(map[uint32]int, len(s.allCounts))
	for id, c := range s.allCounts {
		out[id] = c
	}
	return out
}

// AllLastFires returns per-neuron last fire times (relative to run start).
func (s *Simulator) AllLastFires() map[uint32]int64 {
	out := make(map[uint32]int64, len(s.allLast))
	for id, t := range s.allLast {
		out[id] = t
	}
	return out
}

// AllSpikes returns per-neuron recorded fire times.
func (s *Simulator) AllSpikes() map[uint32][]uint64 {
	out := make(map[uint32][]uint64, len(s.allSpikes))
	for id, ts := range s.allSpikes {
		out[id] = append([]uint64(nil), ts...)
	}
	return out
}

func (s *Simulator) clearAllSpikeLogs() {
	for id := range s.allCounts {
		delete(s.allCounts, id)
	}
	for id := range s.allLast {
		delete(s.allLast, id)
	}
	for id := range s.allSpikes {
		delete(s.allSpikes, id)
	}
}

// Network returns the loaded network at a batch index, or nil.
func (s *Simulator) Network(idx int) *network.Network {
	if idx < 0 || idx >= len(s.nets) {
		return nil
	}
	return s.nets[idx]
}

func clampCharge(c int32) int32 {
	if c < constants.MinCharge {
		return constants.MinCharge
	}
	if c > constants.MaxCharge {
		return constants.MaxCharge
	}
	return c
}

var _ Backend = (*Simulator)(nil)

package proc

import (
	"errors"
	"testing"

	"caspian/internal/model"
)

func intPtr(v int) *int { return &v }

// chainNetwork builds in -> out with the given threshold on the output and
// weight on the connecting synapse.
func chainNetwork(threshold, weight int) *model.Network {
	return &model.Network{
		Nodes: []model.Node{
			{ID: 0, Threshold: 0, InputID: 0, OutputID: -1},
			{ID: 1, Threshold: threshold, InputID: -1, OutputID: 0},
		},
		Edges: []model.Edge{
			{From: 0, To: 1, Weight: weight},
		},
	}
}

func TestNewRejectsBadConfigurations(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
		want error
	}{
		{name: "unknown-key", raw: map[string]any{"Bogus": 1}, want: ErrBadConfiguration},
		{name: "wrong-type", raw: map[string]any{"Max_Threshold": "high"}, want: ErrBadConfiguration},
		{name: "bool-as-int", raw: map[string]any{"Debug": 1}, want: ErrBadConfiguration},
		{name: "inverted-range", raw: map[string]any{"Min_Threshold": 10, "Max_Threshold": 5}, want: ErrBadConfiguration},
		{name: "out-of-range", raw: map[string]any{"Max_Threshold": 1000}, want: ErrBadConfiguration},
		{name: "bad-backend", raw: map[string]any{"Backend": "DANNA2"}, want: ErrUnsupportedBackend},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.raw)
			if !errors.Is(err, tc.want) {
				t.Fatalf("unexpected error: got=%v want=%v", err, tc.want)
			}
		})
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	p, err := New(nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	cfg := p.Configuration()
	if cfg["Backend"] != BackendEventSimulator {
		t.Fatalf("unexpected backend: %v", cfg["Backend"])
	}
	if cfg["Leak_Enable"] != true {
		t.Fatalf("unexpected leak enable: %v", cfg["Leak_Enable"])
	}
	if cfg["Max_Threshold"] != 255 || cfg["Min_Weight"] != -127 || cfg["Max_Weight"] != 127 {
		t.Fatalf("unexpected limits: %v", cfg)
	}
	if cfg["Max_Axon_Delay"] != 0 || cfg["Max_Synapse_Delay"] != 15 {
		t.Fatalf("unexpected delay limits: %v", cfg)
	}
}

func TestLeakDisableForcesRange(t *testing.T) {
	p, err := New(map[string]any{"Leak_Enable": false})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	cfg := p.Configuration()
	if cfg["Min_Leak"] != -1 || cfg["Max_Leak"] != -1 {
		t.Fatalf("unexpected leak range: min=%v max=%v", cfg["Min_Leak"], cfg["Max_Leak"])
	}

	// A network with leak configured loads, but the leak is dropped.
	ext := chainNetwork(0, 100)
	ext.Nodes[1].Leak = intPtr(3)
	if err := p.LoadNetwork(ext); err != nil {
		t.Fatalf("load: %v", err)
	}
	n := p.InternalNetwork(0).NeuronPtr(1)
	if n.Leak != -1 {
		t.Fatalf("leak survived Leak_Enable=false: %d", n.Leak)
	}
}

func TestProcessorProperties(t *testing.T) {
	p, err := New(nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	props := p.Properties()
	if props.InputScalingValue != 255 {
		t.Fatalf("unexpected input scaling: got=%d want=255", props.InputScalingValue)
	}
	if !props.BinaryInput || !props.SpikeRasterInfo || !props.IntegrationDelay {
		t.Fatalf("unexpected flags: %+v", props)
	}
	if props.Plasticity != "none" {
		t.Fatalf("unexpected plasticity: %q", props.Plasticity)
	}
	if props.ThresholdInclusive || props.RunTimeInclusive {
		t.Fatalf("unexpected inclusive flags: %+v", props)
	}
}

func TestRunWithoutNetworkFails(t *testing.T) {
	p, err := New(nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	if err := p.Run(10); !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("expected not loaded, got %v", err)
	}
	if err := p.ApplySpike(model.Spike{ID: 0, Time: 0, Value: 1}); !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("expected not loaded, got %v", err)
	}
	if err := p.ClearActivity(); !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("expected not loaded, got %v", err)
	}
}

func TestSpikeValueScaling(t *testing.T) {
	// value*255 rounds to the applied weight, so a value of 1/255 clears a
	// zero threshold and a value of 0 does not.
	tests := []struct {
		value float64
		fires bool
	}{
		{0.0, false},
		{1.0 / 255.0, true},
		{1.0, true},
	}

	for _, tc := range tests {
		p, err := New(nil)
		if err != nil {
			t.Fatalf("new: %v", err)
		}
		if err := p.LoadNetwork(chainNetwork(0, 100)); err != nil {
			t.Fatalf("load: %v", err)
		}

		if err := p.ApplySpike(model.Spike{ID: 0, Time: 0, Value: tc.value}); err != nil {
			t.Fatalf("apply: %v", err)
		}
		if err := p.Run(10); err != nil {
			t.Fatalf("run: %v", err)
		}

		fired := p.OutputCount(0, 0) == 1
		if fired != tc.fires {
			t.Fatalf("value=%f: fired=%v want=%v", tc.value, fired, tc.fires)
		}
	}
}

func TestAdapterClampsToConfiguredRanges(t *testing.T) {
	p, err := New(nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	ext := &model.Network{
		Nodes: []model.Node{
			{ID: 0, Threshold: 999, Leak: intPtr(9), Delay: intPtr(4), InputID: 0, OutputID: -1},
			{ID: 1, Threshold: -5, InputID: -1, OutputID: 0},
		},
		Edges: []model.Edge{
			{From: 0, To: 1, Weight: 500, Delay: intPtr(99)},
		},
	}
	if err := p.LoadNetwork(ext); err != nil {
		t.Fatalf("load: %v", err)
	}

	net := p.InternalNetwork(0)
	n0 := net.NeuronPtr(0)
	if n0.Threshold != 255 {
		t.Fatalf("threshold not clamped: got=%d want=255", n0.Threshold)
	}
	if n0.Leak != 4 {
		t.Fatalf("leak not clamped: got=%d want=4", n0.Leak)
	}
	if n0.Delay != 0 {
		t.Fatalf("axon delay not clamped: got=%d want=0", n0.Delay)
	}
	n1 := net.NeuronPtr(1)
	if n1.Threshold != 0 {
		t.Fatalf("threshold not clamped up: got=%d want=0", n1.Threshold)
	}
	s, err := net.Synapse(0, 1)
	if err != nil {
		t.Fatalf("synapse: %v", err)
	}
	if s.Weight != 127 {
		t.Fatalf("weight not clamped: got=%d want=127", s.Weight)
	}
	if s.Delay != 15 {
		t.Fatalf("synapse delay not clamped: got=%d want=15", s.Delay)
	}
}

func TestApplyInputsLengthValidation(t *testing.T) {
	p, err := New(nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := p.LoadNetwork(chainNetwork(0, 100)); err != nil {
		t.Fatalf("load: %v", err)
	}

	err = p.ApplyInputs([]int{0, 0}, []int{100}, []uint64{0, 1})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}

	if err := p.ApplyInputs([]int{0}, []int{100}, []uint64{0}); err != nil {
		t.Fatalf("apply inputs: %v", err)
	}
	if err := p.Run(10); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := p.OutputCount(0, 0); got != 1 {
		t.Fatalf("unexpected count: got=%d want=1", got)
	}
}

func TestApplyDVSEvents(t *testing.T) {
	// Four inputs in a 2x2 frame, each wired straight to its own output.
	ext := &model.Network{}
	for i := 0; i < 4; i++ {
		ext.Nodes = append(ext.Nodes,
			model.Node{ID: uint32(i), Threshold: 0, InputID: i, OutputID: -1},
			model.Node{ID: uint32(4 + i), Threshold: 0, InputID: -1, OutputID: i},
		)
		ext.Edges = append(ext.Edges, model.Edge{From: uint32(i), To: uint32(4 + i), Weight: 127})
	}

	p, err := New(nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := p.LoadNetwork(ext); err != nil {
		t.Fatalf("load: %v", err)
	}

	// Event at (x=1, y=1) maps to input 1*2+1 = 3.
	if err := p.ApplyDVSEvents([]int{1}, []int{1}, []float64{0}, nil, 2, 2, false); err != nil {
		t.Fatalf("apply dvs: %v", err)
	}
	if err := p.Run(10); err != nil {
		t.Fatalf("run: %v", err)
	}

	for o := 0; o < 4; o++ {
		want := 0
		if o == 3 {
			want = 1
		}
		if got := p.OutputCount(o, 0); got != want {
			t.Fatalf("output %d: count=%d want=%d", o, got, want)
		}
	}
}

func TestApplyDVSEventsLengthMismatch(t *testing.T) {
	p, err := New(nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := p.LoadNetwork(chainNetwork(0, 100)); err != nil {
		t.Fatalf("load: %v", err)
	}

	err = p.ApplyDVSEvents([]int{0, 1}, []int{0}, []float64{0, 1}, nil, 2, 2, false)
	if !errors.Is(err, ErrLengthMismatch) {
		t.Fatalf("expected length mismatch, got %v", err)
	}

	err = p.ApplyDVSEvents([]int{0}, []int{0}, []float64{0}, nil, 2, 2, true)
	if !errors.Is(err, ErrLengthMismatch) {
		t.Fatalf("expected length mismatch with polarity, got %v", err)
	}
}

func TestOutputAllVariants(t *testing.T) {
	p, err := New(nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := p.LoadNetwork(chainNetwork(0, 100)); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := p.TrackOutput(0, true); err != nil {
		t.Fatalf("track: %v", err)
	}

	if err := p.ApplySpike(model.Spike{ID: 0, Time: 0, Value: 1}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := p.Run(10); err != nil {
		t.Fatalf("run: %v", err)
	}

	counts := p.OutputCounts(0)
	if len(counts) != 1 || counts[0] != 1 {
		t.Fatalf("unexpected counts: %v", counts)
	}
	lasts := p.OutputLastFires(0)
	if len(lasts) != 1 || lasts[0] != 1 {
		t.Fatalf("unexpected last fires: %v", lasts)
	}
	vectors := p.OutputVectors(0)
	if len(vectors) != 1 || len(vectors[0]) != 1 || vectors[0][0] != 1 {
		t.Fatalf("unexpected vectors: %v", vectors)
	}
}

func TestNeuronSpikeAccessors(t *testing.T) {
	p, err := New(nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ext := chainNetwork(0, 100)
	if err := p.LoadNetwork(ext); err != nil {
		t.Fatalf("load: %v", err)
	}

	p.TrackSpikes()
	if err := p.ApplySpike(model.Spike{ID: 0, Time: 0, Value: 1}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := p.Run(10); err != nil {
		t.Fatalf("run: %v", err)
	}

	counts := p.NeuronCounts(0)
	if len(counts) != 2 || counts[0] != 1 || counts[1] != 1 {
		t.Fatalf("unexpected neuron counts: %v", counts)
	}
	lasts := p.NeuronLastFires(0)
	if lasts[0] != 0 || lasts[1] != 1 {
		t.Fatalf("unexpected neuron last fires: %v", lasts)
	}
	vectors := p.NeuronVectors(0)
	if len(vectors[1]) != 1 || vectors[1][0] != 1 {
		t.Fatalf("unexpected neuron vectors: %v", vectors)
	}
	if got := p.TotalNeuronCounts(0); got != 2 {
		t.Fatalf("unexpected total: got=%d want=2", got)
	}
}

func TestClearDetaches(t *testing.T) {
	p, err := New(nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := p.LoadNetwork(chainNetwork(0, 100)); err != nil {
		t.Fatalf("load: %v", err)
	}

	p.Clear()
	if err := p.Run(10); !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("expected not loaded after clear, got %v", err)
	}
}

func TestLoadNetworksSharedShape(t *testing.T) {
	p, err := New(nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	nets := []*model.Network{chainNetwork(0, 100), chainNetwork(50, 100)}
	if err := p.LoadNetworks(nets); err != nil {
		t.Fatalf("load networks: %v", err)
	}

	if err := p.ApplySpike(model.Spike{ID: 0, Time: 0, Value: 1}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := p.Run(10); err != nil {
		t.Fatalf("run: %v", err)
	}

	// The broadcast input fires both networks' chains.
	if got := p.OutputCount(0, 0); got != 1 {
		t.Fatalf("net 0: count=%d want=1", got)
	}
	if got := p.OutputCount(0, 1); got != 1 {
		t.Fatalf("net 1: count=%d want=1", got)
	}
}

func TestExportRoundTrip(t *testing.T) {
	p, err := New(nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ext := chainNetwork(10, 100)
	ext.Edges[0].Delay = intPtr(3)
	if err := p.LoadNetwork(ext); err != nil {
		t.Fatalf("load: %v", err)
	}

	back := ToModel(p.InternalNetwork(0))
	if len(back.Nodes) != 2 || len(back.Edges) != 1 {
		t.Fatalf("unexpected export shape: nodes=%d edges=%d", len(back.Nodes), len(back.Edges))
	}
	if back.Edges[0].Delay == nil || *back.Edges[0].Delay != 3 {
		t.Fatalf("edge delay lost: %+v", back.Edges[0])
	}

	// Loading the exported form behaves identically.
	if err := p.LoadNetwork(back); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if err := p.ApplySpike(model.Spike{ID: 0, Time: 0, Value: 1}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := p.Run(10); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := p.OutputCount(0, 0); got != 1 {
		t.Fatalf("unexpected count: got=%d want=1", got)
	}
}

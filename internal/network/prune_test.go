package network

import "testing"

// Eight neurons, inputs {0}, outputs {3}. The core 0 -> 1 -> 2 -> 3 is
// reachable; 4..7 are disconnected except for two edges among themselves
// (4 -> 5 and 6 -> 7).
func buildPrunable(t *testing.T) *Network {
	t.Helper()

	net := New(8)
	for id := uint32(0); id < 8; id++ {
		mustAddNeuron(t, net, id, 1)
	}
	mustAddSynapse(t, net, 0, 1, 10, 0)
	mustAddSynapse(t, net, 1, 2, 10, 0)
	mustAddSynapse(t, net, 2, 3, 10, 0)
	mustAddSynapse(t, net, 4, 5, 10, 0)
	mustAddSynapse(t, net, 6, 7, 10, 0)
	if err := net.SetInput(0, 0); err != nil {
		t.Fatalf("set input: %v", err)
	}
	if err := net.SetOutput(3, 0); err != nil {
		t.Fatalf("set output: %v", err)
	}
	return net
}

func TestPruneRemovesDisconnectedNeurons(t *testing.T) {
	net := buildPrunable(t)

	net.Prune(false)

	for id := uint32(0); id < 4; id++ {
		if !net.IsNeuron(id) {
			t.Fatalf("core neuron %d was removed", id)
		}
	}
	for id := uint32(4); id < 8; id++ {
		if net.IsNeuron(id) {
			t.Fatalf("disconnected neuron %d survived", id)
		}
	}
	if net.NumNeurons() != 4 {
		t.Fatalf("unexpected neuron count: got=%d want=4", net.NumNeurons())
	}

	for _, sp := range net.SynapseList() {
		if sp.From > 3 || sp.To > 3 {
			t.Fatalf("synapse list references pruned neuron: %v", sp)
		}
	}
	if net.NumSynapses() != 3 {
		t.Fatalf("unexpected synapse count: got=%d want=3", net.NumSynapses())
	}
}

func TestPrunePreservesIONeurons(t *testing.T) {
	net := buildPrunable(t)
	// Neuron 7 carries an output assignment but is unreachable from input 0.
	if err := net.SetOutput(7, 1); err != nil {
		t.Fatalf("set output: %v", err)
	}

	net.Prune(false)

	if !net.IsNeuron(7) {
		t.Fatal("io neuron was pruned despite include_io=false")
	}
	if net.IsNeuron(4) || net.IsNeuron(5) {
		t.Fatal("disconnected hidden neurons survived")
	}

	// With includeIO, the unreachable output neuron goes too.
	net2 := buildPrunable(t)
	if err := net2.SetOutput(7, 1); err != nil {
		t.Fatalf("set output: %v", err)
	}
	net2.Prune(true)
	if net2.IsNeuron(7) {
		t.Fatal("io neuron survived include_io=true")
	}
}

func TestPruneRemovesDeadBranches(t *testing.T) {
	net := New(5)
	for id := uint32(0); id < 5; id++ {
		mustAddNeuron(t, net, id, 1)
	}
	// 0 -> 1 -> 2 is the live path. 1 -> 3 is forward-reachable but cannot
	// reach the output; 4 -> 2 reaches the output but is not reachable.
	mustAddSynapse(t, net, 0, 1, 10, 0)
	mustAddSynapse(t, net, 1, 2, 10, 0)
	mustAddSynapse(t, net, 1, 3, 10, 0)
	mustAddSynapse(t, net, 4, 2, 10, 0)
	if err := net.SetInput(0, 0); err != nil {
		t.Fatalf("set input: %v", err)
	}
	if err := net.SetOutput(2, 0); err != nil {
		t.Fatalf("set output: %v", err)
	}

	net.Prune(false)

	if net.IsNeuron(3) {
		t.Fatal("dead forward branch survived")
	}
	if net.IsNeuron(4) {
		t.Fatal("unreachable backward branch survived")
	}
	if !net.IsNeuron(0) || !net.IsNeuron(1) || !net.IsNeuron(2) {
		t.Fatal("live path was pruned")
	}
}

package caspian

import (
	"context"
	"testing"

	"caspian/internal/network"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	client, err := NewClient(context.Background(), Options{StoreKind: "memory"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// chainPayload serializes in -> out with the given threshold and weight.
func chainPayload(t *testing.T, threshold int16, weight int16) []byte {
	t.Helper()

	net := network.New(2)
	if err := net.AddNeuron(0, 0, -1, 0); err != nil {
		t.Fatalf("add neuron: %v", err)
	}
	if err := net.AddNeuron(1, threshold, -1, 0); err != nil {
		t.Fatalf("add neuron: %v", err)
	}
	if err := net.AddSynapse(0, 1, weight, 0); err != nil {
		t.Fatalf("add synapse: %v", err)
	}
	if err := net.SetInput(0, 0); err != nil {
		t.Fatalf("set input: %v", err)
	}
	if err := net.SetOutput(1, 0); err != nil {
		t.Fatalf("set output: %v", err)
	}

	payload, err := net.ToJSON()
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	return payload
}

func TestSaveAndLoadNetwork(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	payload := chainPayload(t, 1, 100)
	if err := client.SaveNetwork(ctx, "chain", payload); err != nil {
		t.Fatalf("save: %v", err)
	}

	net, err := client.LoadNetwork(ctx, "chain")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if net.NumNeurons() != 2 || net.NumSynapses() != 1 {
		t.Fatalf("unexpected shape: neurons=%d synapses=%d", net.NumNeurons(), net.NumSynapses())
	}

	if _, err := client.LoadNetwork(ctx, "missing"); err == nil {
		t.Fatal("expected error for missing network")
	}

	if err := client.SaveNetwork(ctx, "bad", []byte(`{"version": 0.1}`)); err == nil {
		t.Fatal("expected validation error for bad payload")
	}
}

func TestGenerateRandomStoresNetwork(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	cfg := network.DefaultRandomConfig(3, 2, 7)
	net, err := client.GenerateRandom(ctx, "rand", 30, cfg)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if net.NumNeurons() != 30 {
		t.Fatalf("unexpected neuron count: got=%d want=30", net.NumNeurons())
	}

	loaded, err := client.LoadNetwork(ctx, "rand")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !net.Equal(loaded) {
		t.Fatal("stored network differs from the generated one")
	}
}

func TestPredictStoresRun(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	if err := client.SaveNetwork(ctx, "chain", chainPayload(t, 0, 100)); err != nil {
		t.Fatalf("save: %v", err)
	}

	summary, err := client.Predict(ctx, PredictRequest{
		NetworkNames: []string{"chain"},
		Encoder:      EncoderSpec{Spikes: 4, Interval: 1, Min: 0, Max: 1},
		Samples:      [][]float64{{1}},
		Labels:       []int{0},
		Steps:        20,
		Workers:      2,
	})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}

	if summary.RunID == "" {
		t.Fatal("missing run id")
	}
	if len(summary.Predictions) != 1 || summary.Predictions[0][0] != 0 {
		t.Fatalf("unexpected predictions: %v", summary.Predictions)
	}
	if summary.Accuracies[0] != 1.0 {
		t.Fatalf("unexpected accuracy: got=%f want=1", summary.Accuracies[0])
	}

	runs, err := client.Runs(ctx, 0)
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != summary.RunID {
		t.Fatalf("unexpected stored runs: %v", runs)
	}
}

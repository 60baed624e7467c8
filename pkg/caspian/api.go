// Package caspian is the public entry point for managing stored networks and
// running batch inference without touching the internal packages directly.
package caspian

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"caspian/internal/encode"
	"caspian/internal/infer"
	"caspian/internal/model"
	"caspian/internal/network"
	"caspian/internal/proc"
	"caspian/internal/storage"
)

const defaultDBPath = "caspian.db"

// Options configures a Client.
type Options struct {
	// StoreKind selects the persistence backend: "memory" or "sqlite".
	StoreKind string
	// DBPath is the sqlite database path.
	DBPath string
}

// Client owns a store and provides network management and inference on top
// of it.
type Client struct {
	store storage.Store
}

// NewClient opens the configured store.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}

	store, err := storage.NewStore(opts.StoreKind, dbPath)
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	return &Client{store: store}, nil
}

// Close releases the store.
func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

// SaveNetwork stores a network's canonical JSON payload under a name. The
// payload is validated by a decode round before it is written.
func (c *Client) SaveNetwork(ctx context.Context, name string, payload []byte) error {
	if err := network.New(0).FromJSON(payload); err != nil {
		return err
	}
	return c.store.SaveNetwork(ctx, storage.NetworkRecord{
		Name:         name,
		CreatedAtUTC: time.Now().UTC().Format(time.RFC3339),
		Payload:      payload,
	})
}

// LoadNetwork fetches and decodes a stored network.
func (c *Client) LoadNetwork(ctx context.Context, name string) (*network.Network, error) {
	record, ok, err := c.store.GetNetwork(ctx, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("network not found: %s", name)
	}
	net := network.New(0)
	if err := net.FromJSON(record.Payload); err != nil {
		return nil, err
	}
	return net, nil
}

// Networks lists stored network records.
func (c *Client) Networks(ctx context.Context) ([]storage.NetworkRecord, error) {
	return c.store.ListNetworks(ctx)
}

// GenerateRandom creates, stores, and returns a random network with the
// given element count and generation parameters.
func (c *Client) GenerateRandom(ctx context.Context, name string, size int, cfg network.RandomConfig) (*network.Network, error) {
	net := network.New(size)
	if err := net.MakeRandom(cfg); err != nil {
		return nil, err
	}

	payload, err := net.ToJSON()
	if err != nil {
		return nil, err
	}
	if err := c.SaveNetwork(ctx, name, payload); err != nil {
		return nil, err
	}
	return net, nil
}

// EncoderSpec describes the per-feature spike encoder used by Predict.
type EncoderSpec struct {
	Spikes   int
	Interval int
	Min      float64
	Max      float64
	// Variable is "spikes" (count modulation, the default) or "interval".
	Variable string
}

// PredictRequest names stored networks and supplies the sample matrix for a
// batch-inference run.
type PredictRequest struct {
	NetworkNames []string
	Config       map[string]any
	Encoder      EncoderSpec
	Samples      [][]float64
	Labels       []int
	Steps        int
	Workers      int
}

// PredictSummary reports a stored batch-inference run.
type PredictSummary struct {
	RunID       string
	Predictions [][]int
	Accuracies  []float64
}

// Predict loads the named networks, evaluates them over the samples with the
// parallel inference pool, and stores the outcome as a run record.
func (c *Client) Predict(ctx context.Context, req PredictRequest) (PredictSummary, error) {
	if len(req.NetworkNames) == 0 {
		return PredictSummary{}, fmt.Errorf("at least one network name is required")
	}
	if len(req.Samples) == 0 {
		return PredictSummary{}, fmt.Errorf("at least one sample is required")
	}

	nets := make([]*model.Network, 0, len(req.NetworkNames))
	for _, name := range req.NetworkNames {
		net, err := c.LoadNetwork(ctx, name)
		if err != nil {
			return PredictSummary{}, err
		}
		nets = append(nets, proc.ToModel(net))
	}

	variable := encode.NumSpikes
	if req.Encoder.Variable == "interval" {
		variable = encode.Interval
	}
	encoder := encode.NewUniformArray(len(req.Samples[0]), encode.Encoder{
		Spikes:   req.Encoder.Spikes,
		Interval: req.Encoder.Interval,
		Min:      req.Encoder.Min,
		Max:      req.Encoder.Max,
		Variable: variable,
	})

	result, err := infer.Predict(infer.Request{
		Config:   req.Config,
		Encoder:  encoder,
		Networks: nets,
		Samples:  req.Samples,
		Steps:    req.Steps,
		Workers:  req.Workers,
		Labels:   req.Labels,
	})
	if err != nil {
		return PredictSummary{}, err
	}

	runID := uuid.NewString()
	record := storage.RunRecord{
		ID:           runID,
		CreatedAtUTC: time.Now().UTC().Format(time.RFC3339),
		Networks:     req.NetworkNames,
		Samples:      len(req.Samples),
		Steps:        req.Steps,
		Workers:      req.Workers,
		Predictions:  result.Predictions,
		Accuracies:   result.Accuracies,
	}
	if err := c.store.SaveRun(ctx, record); err != nil {
		return PredictSummary{}, err
	}

	return PredictSummary{
		RunID:       runID,
		Predictions: result.Predictions,
		Accuracies:  result.Accuracies,
	}, nil
}

// Runs lists stored run records, newest last. A limit of 0 returns all.
func (c *Client) Runs(ctx context.Context, limit int) ([]storage.RunRecord, error) {
	runs, err := c.store.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(runs) > limit {
		runs = runs[len(runs)-limit:]
	}
	return runs, nil
}

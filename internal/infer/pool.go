// Package infer evaluates many networks across many samples in parallel.
// Samples are encoded once up front; network indices are then fanned out over
// a worker pool in which every worker owns a private processor instance.
package infer

import (
	"fmt"
	"log/slog"
	"sync"

	"caspian/internal/model"
	"caspian/internal/proc"
)

// DefaultWorkers is the pool size used when a request does not set one.
const DefaultWorkers = 4

// SpikeSource encodes one feature vector into a spike train. The pool
// invokes it exactly once per sample, never concurrently.
type SpikeSource interface {
	Spikes(features []float64) ([]model.Spike, error)
}

// Request describes one batch-inference job.
type Request struct {
	// Config is the processor configuration each worker is constructed from.
	Config map[string]any
	// Encoder maps a feature vector to a spike sequence.
	Encoder SpikeSource
	// Networks are the candidate networks; all must share the sample feature
	// count as input count.
	Networks []*model.Network
	// Samples is the (samples x features) data matrix.
	Samples [][]float64
	// Steps is the simulation duration per sample.
	Steps int
	// Workers is the pool size; 0 selects DefaultWorkers.
	Workers int
	// Labels, when present, must have one entry per sample and enables
	// accuracy scoring.
	Labels []int
	// Logger receives per-network failure notices; nil selects the process
	// default.
	Logger *slog.Logger
}

// Result is the prediction matrix and, when labels were given, the
// per-network accuracy scores.
type Result struct {
	// Predictions has one row per network, one column per sample; each entry
	// is the output index with the highest fire count (ties break low).
	Predictions [][]int
	// Accuracies has one entry per network when labels were provided.
	Accuracies []float64
}

// Predict encodes the samples, then evaluates every network against every
// sample using a pool of workers fed from a shared index queue. A network
// that cannot be evaluated keeps an all-zero prediction row.
func Predict(req Request) (Result, error) {
	if req.Encoder == nil {
		return Result{}, fmt.Errorf("encoder is required")
	}
	if len(req.Networks) == 0 {
		return Result{}, fmt.Errorf("at least one network is required")
	}
	if req.Steps <= 0 {
		return Result{}, fmt.Errorf("steps must be > 0")
	}
	if req.Labels != nil && len(req.Labels) != len(req.Samples) {
		return Result{}, fmt.Errorf("label count mismatch: got=%d want=%d", len(req.Labels), len(req.Samples))
	}
	if _, err := proc.New(req.Config); err != nil {
		return Result{}, err
	}

	logger := req.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// Encode every sample once, single-threaded; workers read the table
	// concurrently but never write it.
	encoded := make([][]model.Spike, len(req.Samples))
	features := make([]float64, 0)
	for m, sample := range req.Samples {
		features = append(features[:0], sample...)
		spikes, err := req.Encoder.Spikes(features)
		if err != nil {
			return Result{}, fmt.Errorf("encode sample %d: %w", m, err)
		}
		encoded[m] = spikes
	}

	predictions := make([][]int, len(req.Networks))
	for i := range predictions {
		predictions[i] = make([]int, len(req.Samples))
	}
	var accuracies []float64
	if req.Labels != nil {
		accuracies = make([]float64, len(req.Networks))
	}

	workerCount := req.Workers
	if workerCount <= 0 {
		workerCount = DefaultWorkers
	}
	if workerCount > len(req.Networks) {
		workerCount = len(req.Networks)
	}

	// The queue is the only synchronization point: each network index is
	// delivered to exactly one worker.
	queue := make(chan int, len(req.Networks))
	for i := range req.Networks {
		queue <- i
	}
	close(queue)

	var wg sync.WaitGroup
	wg.Add(workerCount)
	for w := 0; w < workerCount; w++ {
		go func() {
			defer wg.Done()

			p, err := proc.New(req.Config)
			if err != nil {
				logger.Warn("worker processor construction failed", "err", err)
				return
			}

			for idx := range queue {
				if err := evaluateNetwork(p, req, encoded, predictions[idx], idx); err != nil {
					logger.Warn("network evaluation failed", "network", idx, "err", err)
					for m := range predictions[idx] {
						predictions[idx][m] = 0
					}
					continue
				}
				if accuracies != nil {
					accuracies[idx] = score(predictions[idx], req.Labels)
				}
			}
		}()
	}
	wg.Wait()

	return Result{Predictions: predictions, Accuracies: accuracies}, nil
}

// evaluateNetwork runs every encoded sample through one network and writes
// the argmax output index into the network's prediction row.
func evaluateNetwork(p *proc.Processor, req Request, encoded [][]model.Spike, row []int, idx int) error {
	if err := p.LoadNetwork(req.Networks[idx]); err != nil {
		return err
	}

	outputs := req.Networks[idx].NumOutputs()

	for m := range encoded {
		if err := p.ApplySpikes(encoded[m]); err != nil {
			return err
		}
		if err := p.Run(float64(req.Steps)); err != nil {
			return err
		}

		best, bestCount := 0, -1
		for o := 0; o < outputs; o++ {
			if c := p.OutputCount(o, 0); c > bestCount {
				best, bestCount = o, c
			}
		}
		row[m] = best

		if err := p.ClearActivity(); err != nil {
			return err
		}
	}
	return nil
}

func score(predictions []int, labels []int) float64 {
	if len(predictions) == 0 {
		return 0
	}
	correct := 0
	for i, pred := range predictions {
		if pred == labels[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(predictions))
}

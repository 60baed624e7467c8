// Package encode turns numeric feature values into spike trains. An Encoder
// handles one feature; an Array fans a feature vector across consecutive
// input channels and is the spike source used by the batch-inference pool.
package encode

import (
	"fmt"

	"caspian/internal/model"
)

// Variable selects which aspect of the spike train a value modulates.
type Variable int

const (
	// NumSpikes scales the number of emitted spikes with the value.
	NumSpikes Variable = iota
	// Interval shrinks the gap between a fixed number of spikes as the value
	// grows.
	Interval
)

// Encoder converts one normalized feature value into a spike train. Values
// are normalized into [0, 1] using the [Min, Max] range before modulation.
type Encoder struct {
	Spikes   int
	Interval int
	Min      float64
	Max      float64
	Variable Variable
}

// Encode returns the spike train for one value as (value, time) pulses. The
// emitted spike value is always 1.0; timing and count carry the information.
func (e Encoder) Encode(value float64) []model.Spike {
	norm := 0.0
	if e.Max != e.Min {
		norm = (value - e.Min) / (e.Max - e.Min)
	}
	if norm < 0 {
		norm = 0
	}
	if norm > 1 {
		norm = 1
	}

	spikes := e.Spikes
	interval := e.Interval

	switch e.Variable {
	case NumSpikes:
		spikes = int(float64(e.Spikes) * norm)
	case Interval:
		interval = int(float64(e.Interval) * (1.0 - norm))
	}

	out := make([]model.Spike, spikes)
	for i := 0; i < spikes; i++ {
		out[i] = model.Spike{Value: 1.0, Time: float64(interval * i)}
	}
	return out
}

// Array applies one encoder per feature, emitting spikes whose ids are the
// feature indices.
type Array struct {
	Encoders []Encoder
}

// NewUniformArray builds an array of n identical encoders.
func NewUniformArray(n int, enc Encoder) Array {
	encoders := make([]Encoder, n)
	for i := range encoders {
		encoders[i] = enc
	}
	return Array{Encoders: encoders}
}

// Spikes encodes a feature vector. The vector length must match the encoder
// count.
func (a Array) Spikes(features []float64) ([]model.Spike, error) {
	if len(features) != len(a.Encoders) {
		return nil, fmt.Errorf("feature count mismatch: got=%d want=%d", len(features), len(a.Encoders))
	}

	var out []model.Spike
	for i, v := range features {
		for _, s := range a.Encoders[i].Encode(v) {
			s.ID = uint32(i)
			out = append(out, s)
		}
	}
	return out, nil
}

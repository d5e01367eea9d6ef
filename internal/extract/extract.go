// Package extract reads simulation-run artifacts and emits observation rows.
package extract

import (
	"context"
	"iter"
)

// Observation is one predicted/observed value pair.
type Observation struct {
	Source    string
	Model     string
	Variable  string
	Predicted float64
	Observed  float64
}

// Extractor reads one artifact. The returned sequence is lazy and finite; each
// range over it re-reads the artifact. Errors end the sequence.
type Extractor interface {
	Extract(ctx context.Context, artifactPath string) iter.Seq2[Observation, error]
}

// Collect drains a sequence, stopping at the first error.
func Collect(seq iter.Seq2[Observation, error]) ([]Observation, error) {
	var out []Observation
	for o, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, o)
	}
	return out, nil
}

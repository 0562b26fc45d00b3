// Package scoring computes the recency, importance and relevance sub-scores
// for memory records and combines them into a single rank score. The scorer is
// a pure function over a record, a query embedding and a point in time, which
// keeps it trivially testable without any external dependency.
package scoring

import (
	"math"
	"time"

	"github.com/hupe1980/memstream/core"
)

// DefaultDecayFactor is the per-hour recency decay applied to the time since a
// record was last accessed.
const DefaultDecayFactor = 0.99

// Weights hold the relative weighting of the three sub-scores. They are
// relative, not absolute: Normalized rescales them to sum to one so scores
// stay in [0,1] regardless of how callers express the ratio.
type Weights struct {
	Recency    float64
	Importance float64
	Relevance  float64
}

// DefaultWeights returns equal weighting of the three sub-scores.
func DefaultWeights() Weights {
	return Weights{Recency: 1, Importance: 1, Relevance: 1}
}

// Normalized returns a copy of w scaled so the components sum to one. A
// non-positive sum falls back to equal weighting.
func (w Weights) Normalized() Weights {
	sum := w.Recency + w.Importance + w.Relevance
	if sum <= 0 {
		third := 1.0 / 3.0
		return Weights{Recency: third, Importance: third, Relevance: third}
	}
	return Weights{
		Recency:    w.Recency / sum,
		Importance: w.Importance / sum,
		Relevance:  w.Relevance / sum,
	}
}

// Options configure a Scorer.
type Options struct {
	// DecayFactor is the per-hour recency decay base in (0,1].
	DecayFactor float64
	// Weights are the relative sub-score weights, normalized at construction.
	Weights Weights
}

// Scorer computes sub-scores and their weighted combination.
type Scorer struct {
	decay   float64
	weights Weights
}

// New constructs a Scorer with optional overrides.
func New(optFns ...func(o *Options)) *Scorer {
	opts := Options{
		DecayFactor: DefaultDecayFactor,
		Weights:     DefaultWeights(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.DecayFactor <= 0 || opts.DecayFactor > 1 {
		opts.DecayFactor = DefaultDecayFactor
	}
	return &Scorer{decay: opts.DecayFactor, weights: opts.Weights.Normalized()}
}

// Weights returns the normalized weights in use.
func (s *Scorer) Weights() Weights { return s.weights }

// Recency returns decay^hours where hours is the time elapsed since the
// record was last accessed, not since it was created. Frequently revisited
// memories stay warm even when the underlying event is old.
func (s *Scorer) Recency(now time.Time, r *core.Record) float64 {
	hours := now.Sub(r.LastAccessedAt).Hours()
	if hours < 0 {
		hours = 0
	}
	return math.Pow(s.decay, hours)
}

// Importance min-max scales the record's importance against the observed
// range currently in the stream. When every record shares one importance
// value the scaled importance is 1.0 for all of them.
func (s *Scorer) Importance(r *core.Record, minImp, maxImp int) float64 {
	if maxImp <= minImp {
		return 1.0
	}
	return float64(r.Importance-minImp) / float64(maxImp-minImp)
}

// Relevance is the cosine similarity between the query embedding and the
// record's embedding, rescaled from [-1,1] to [0,1].
func (s *Scorer) Relevance(query []float32, r *core.Record) float64 {
	return (Cosine(query, r.Embedding) + 1) / 2
}

// Combined returns the weighted sum of the three sub-scores.
func (s *Scorer) Combined(query []float32, now time.Time, r *core.Record, minImp, maxImp int) float64 {
	return s.weights.Recency*s.Recency(now, r) +
		s.weights.Importance*s.Importance(r, minImp, maxImp) +
		s.weights.Relevance*s.Relevance(query, r)
}

// Cosine computes the cosine similarity of two vectors. Mismatched lengths and
// zero vectors yield 0.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Package evidence scores per-sample allele counts against a pure
// sequencing-error model.
package evidence

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// Counts exposes per-sample allele depths. *vcf.Record implements it.
type Counts interface {
	RefCount(sample int) int
	AltCount(sample int) int
}

// Engine evaluates allele counts under a binomial sequencing-error null.
// It holds no mutable state and is safe for concurrent use.
type Engine struct {
	cfg Config
}

// NewEngine validates cfg and returns an engine.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg}, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// TailProbability returns P(X >= alt) for X ~ Binomial(depth, BaseErrorRate),
// the chance of seeing at least the observed alternate reads if every one of
// them were a sequencing error. A sample with no reads returns 1.
func (e *Engine) TailProbability(c Counts, sample int) float64 {
	return e.tail(c.RefCount(sample), c.AltCount(sample))
}

func (e *Engine) tail(ref, alt int) float64 {
	d := ref + alt
	if d == 0 {
		return 1
	}

	b := distuv.Binomial{N: float64(d), P: e.cfg.BaseErrorRate}

	// Smallest terms first.
	total := 0.0
	for k := d; k >= alt; k-- {
		total += b.Prob(float64(k))
	}
	return math.Max(0, math.Min(1, total))
}

// HasEvidenceOfPresence reports whether the tail probability reaches the
// threshold, i.e. the error-only explanation is not rejected.
func (e *Engine) HasEvidenceOfPresence(c Counts, sample int) bool {
	return e.TailProbability(c, sample) >= e.cfg.PValueThreshold
}

// HasEvidenceOfAbsence is the complement of HasEvidenceOfPresence.
func (e *Engine) HasEvidenceOfAbsence(c Counts, sample int) bool {
	return e.TailProbability(c, sample) < e.cfg.PValueThreshold
}

// AlleleFraction returns alt/(ref+alt). ok is false, and the value NaN,
// when the sample has no reads.
func AlleleFraction(c Counts, sample int) (frac float64, ok bool) {
	ref, alt := c.RefCount(sample), c.AltCount(sample)
	if ref+alt == 0 {
		return math.NaN(), false
	}
	return float64(alt) / float64(ref+alt), true
}

// MinorAlleleFraction returns min(ref,alt)/(ref+alt), never above 0.5.
// ok is false, and the value NaN, when the sample has no reads.
func MinorAlleleFraction(c Counts, sample int) (frac float64, ok bool) {
	ref, alt := c.RefCount(sample), c.AltCount(sample)
	if ref+alt == 0 {
		return math.NaN(), false
	}
	return float64(min(ref, alt)) / float64(ref+alt), true
}

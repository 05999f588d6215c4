package evidence

import (
	"github.com/samber/lo"

	"github.com/smuth-go/smuth/internal/vcf"
)

// Samples is a record with genotype calls and allele depths per sample.
type Samples interface {
	Counts
	NumSamples() int
	Genotype(sample int) string
	State(sample int) vcf.SampleState
}

// Verdict bundles the engine's view of one sample.
type Verdict struct {
	Sample   int
	Genotype string
	State    vcf.SampleState
	RefCount int
	AltCount int
	Depth    int

	TailProb float64
	Present  bool // HasEvidenceOfPresence

	AF    float64 // NaN when Depth is 0
	MAF   float64 // NaN when Depth is 0
	HasAF bool
}

// Evaluate computes a verdict for every sample of s, in sample order.
func (e *Engine) Evaluate(s Samples) []Verdict {
	return lo.Times(s.NumSamples(), func(i int) Verdict {
		ref, alt := s.RefCount(i), s.AltCount(i)
		tail := e.tail(ref, alt)
		af, ok := AlleleFraction(s, i)
		maf, _ := MinorAlleleFraction(s, i)
		return Verdict{
			Sample:   i,
			Genotype: s.Genotype(i),
			State:    s.State(i),
			RefCount: ref,
			AltCount: alt,
			Depth:    ref + alt,
			TailProb: tail,
			Present:  tail >= e.cfg.PValueThreshold,
			AF:       af,
			MAF:      maf,
			HasAF:    ok,
		}
	})
}

// CountPresent returns how many verdicts show evidence of presence.
func CountPresent(verdicts []Verdict) int {
	return lo.CountBy(verdicts, func(v Verdict) bool { return v.Present })
}

// Package relabel turns evidence verdicts into group codes and applies them
// to records.
package relabel

import (
	"strings"

	"go.uber.org/zap"

	"github.com/smuth-go/smuth/internal/evidence"
	"github.com/smuth-go/smuth/internal/vcf"
)

// Code derives a group code from verdicts. A sample whose alternate reads
// are not explainable by sequencing error is coded variant, one whose reads
// are is coded reference. Samples without reads keep their current class.
func Code(verdicts []evidence.Verdict) string {
	var sb strings.Builder
	sb.Grow(len(verdicts))
	for _, v := range verdicts {
		switch {
		case v.Depth == 0:
			if v.State == vcf.HomRef {
				sb.WriteByte(vcf.GroupRef)
			} else {
				sb.WriteByte(vcf.GroupVariant)
			}
		case v.Present:
			sb.WriteByte(vcf.GroupRef)
		default:
			sb.WriteByte(vcf.GroupVariant)
		}
	}
	return sb.String()
}

// Result describes one relabeled record.
type Result struct {
	Before   string             // group code before relabeling
	Applied  string             // code handed to ApplyGroup
	Changed  int                // samples relabeled
	Verdicts []evidence.Verdict // computed before relabeling
}

// Relabeler evaluates records and applies evidence-derived group codes.
type Relabeler struct {
	engine *evidence.Engine
	logger *zap.Logger
	dryRun bool
}

// NewRelabeler creates a relabeler backed by engine.
func NewRelabeler(engine *evidence.Engine) *Relabeler {
	return &Relabeler{
		engine: engine,
		logger: zap.NewNop(),
	}
}

// SetLogger sets the logger for relabel messages.
func (rl *Relabeler) SetLogger(l *zap.Logger) {
	rl.logger = l
}

// SetDryRun configures whether Relabel only derives codes without
// touching the record.
func (rl *Relabeler) SetDryRun(dryRun bool) {
	rl.dryRun = dryRun
}

// Engine returns the evidence engine.
func (rl *Relabeler) Engine() *evidence.Engine {
	return rl.engine
}

// Relabel evaluates rec and rewrites the genotypes that contradict the
// evidence. rec must not be used concurrently.
func (rl *Relabeler) Relabel(rec *vcf.Record) (Result, error) {
	res := Result{
		Before:   rec.Group(),
		Verdicts: rl.engine.Evaluate(rec),
	}
	res.Applied = Code(res.Verdicts)
	if rl.dryRun {
		return res, nil
	}

	changed, err := rec.ApplyGroup(res.Applied)
	if err != nil {
		return res, err
	}
	res.Changed = changed

	if changed > 0 {
		rl.logger.Debug("relabeled record",
			zap.String("chrom", rec.Chromosome()),
			zap.Int64("pos", rec.Position()),
			zap.String("before", res.Before),
			zap.String("after", rec.Group()),
			zap.Int("changed", changed))
	}
	return res, nil
}

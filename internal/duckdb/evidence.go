package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	goduckdb "github.com/marcboeker/go-duckdb"

	"github.com/smuth-go/smuth/internal/evidence"
	"github.com/smuth-go/smuth/internal/vcf"
)

// Run identifies one relabel invocation.
type Run struct {
	ID        string
	Input     FileFingerprint
	Config    evidence.Config
	StartedAt time.Time
}

// RunSummary is a run with the number of evidence rows stored for it.
type RunSummary struct {
	Run
	Rows int64
}

// EvidenceRow is one sample of one record.
type EvidenceRow struct {
	Chrom          string
	Pos            int64
	Ref            string
	Alt            string
	SampleIndex    int
	Sample         string
	GenotypeBefore string
	GenotypeAfter  string
	RefCount       int
	AltCount       int
	TailProb       float64
	Present        bool
	AF             float64 // NaN when HasAF is false
	MAF            float64
	HasAF          bool
}

// NewEvidenceRows builds rows for rec from verdicts computed before any
// relabel was applied.
func NewEvidenceRows(rec *vcf.Record, verdicts []evidence.Verdict, sampleNames []string) []EvidenceRow {
	rows := make([]EvidenceRow, len(verdicts))
	for i, v := range verdicts {
		name := strconv.Itoa(v.Sample)
		if v.Sample < len(sampleNames) {
			name = sampleNames[v.Sample]
		}
		rows[i] = EvidenceRow{
			Chrom:          rec.Chromosome(),
			Pos:            rec.Position(),
			Ref:            rec.Ref(),
			Alt:            rec.Alt(),
			SampleIndex:    v.Sample,
			Sample:         name,
			GenotypeBefore: v.Genotype,
			GenotypeAfter:  rec.Genotype(v.Sample),
			RefCount:       v.RefCount,
			AltCount:       v.AltCount,
			TailProb:       v.TailProb,
			Present:        v.Present,
			AF:             v.AF,
			MAF:            v.MAF,
			HasAF:          v.HasAF,
		}
	}
	return rows
}

// evidenceKey is the composite key for deduplicating rows before writing.
type evidenceKey struct {
	chrom, ref, alt string
	pos             int64
	sample          int
}

// BeginRun registers a new run with a random ID.
func (s *Store) BeginRun(input FileFingerprint, cfg evidence.Config) (Run, error) {
	run := Run{
		ID:        uuid.NewString(),
		Input:     input,
		Config:    cfg,
		StartedAt: time.Now().UTC(),
	}

	var modTime any
	if !input.ModTime.IsZero() {
		modTime = input.ModTime.UTC()
	}

	_, err := s.db.Exec(`INSERT INTO runs
		(run_id, input_path, input_size, input_modtime, base_error_rate, pvalue_threshold, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, input.Path, input.Size, modTime, cfg.BaseErrorRate, cfg.PValueThreshold, run.StartedAt)
	if err != nil {
		return Run{}, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// WriteEvidence batch-inserts rows for a run using the Appender API.
// Within a run the first row written for a (chrom, pos, ref, alt, sample)
// key wins; later duplicates are dropped, whether they arrive in the same
// batch or a later one.
func (s *Store) WriteEvidence(runID string, rows []EvidenceRow) error {
	if len(rows) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := s.seen[runID]
	if seen == nil {
		seen = make(map[evidenceKey]struct{}, len(rows))
	}
	var added []evidenceKey
	deduped := make([]EvidenceRow, 0, len(rows))
	for _, r := range rows {
		k := evidenceKey{r.Chrom, r.Ref, r.Alt, r.Pos, r.SampleIndex}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		added = append(added, k)
		deduped = append(deduped, r)
	}
	if len(deduped) == 0 {
		return nil
	}

	if err := s.appendEvidence(runID, deduped); err != nil {
		// A failed flush discards the whole batch.
		for _, k := range added {
			delete(seen, k)
		}
		return err
	}
	s.seen[runID] = seen
	return nil
}

func (s *Store) appendEvidence(runID string, rows []EvidenceRow) error {
	conn, err := s.db.Conn(context.Background())
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", "sample_evidence")
		return err
	}); err != nil {
		return fmt.Errorf("create appender: %w", err)
	}
	defer appender.Close()

	for _, r := range rows {
		var af, maf driver.Value
		if r.HasAF {
			af, maf = r.AF, r.MAF
		}
		if err := appender.AppendRow(
			runID, r.Chrom, r.Pos, r.Ref, r.Alt,
			int32(r.SampleIndex), r.Sample, r.GenotypeBefore, r.GenotypeAfter,
			int32(r.RefCount), int32(r.AltCount),
			r.TailProb, r.Present, af, maf,
		); err != nil {
			return fmt.Errorf("append evidence row: %w", err)
		}
	}

	return appender.Flush()
}

// LookupSite returns every stored row at chrom:pos across runs, ordered by
// run start and sample.
func (s *Store) LookupSite(chrom string, pos int64) ([]EvidenceRow, error) {
	rows, err := s.db.Query(`SELECT
		e.chrom, e.pos, e.ref, e.alt, e.sample_index, e.sample,
		e.genotype_before, e.genotype_after, e.ref_count, e.alt_count,
		e.tail_prob, e.present, e.af, e.maf
		FROM sample_evidence e
		LEFT JOIN runs r ON r.run_id = e.run_id
		WHERE e.chrom=? AND e.pos=?
		ORDER BY r.started_at, e.ref, e.alt, e.sample_index`,
		chrom, pos)
	if err != nil {
		return nil, fmt.Errorf("query site: %w", err)
	}
	defer rows.Close()

	var out []EvidenceRow
	for rows.Next() {
		var (
			r        EvidenceRow
			af, maf  sql.NullFloat64
			refCount int32
			altCount int32
			index    int32
		)
		if err := rows.Scan(
			&r.Chrom, &r.Pos, &r.Ref, &r.Alt, &index, &r.Sample,
			&r.GenotypeBefore, &r.GenotypeAfter, &refCount, &altCount,
			&r.TailProb, &r.Present, &af, &maf,
		); err != nil {
			return nil, fmt.Errorf("scan evidence: %w", err)
		}
		r.SampleIndex = int(index)
		r.RefCount = int(refCount)
		r.AltCount = int(altCount)
		r.HasAF = af.Valid
		r.AF, r.MAF = math.NaN(), math.NaN()
		if af.Valid {
			r.AF, r.MAF = af.Float64, maf.Float64
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate evidence: %w", err)
	}
	return out, nil
}

// Runs lists stored runs, oldest first, with their row counts.
func (s *Store) Runs() ([]RunSummary, error) {
	rows, err := s.db.Query(`SELECT
		r.run_id, r.input_path, r.input_size, r.input_modtime,
		r.base_error_rate, r.pvalue_threshold, r.started_at,
		count(e.run_id)
		FROM runs r
		LEFT JOIN sample_evidence e ON e.run_id = r.run_id
		GROUP BY ALL
		ORDER BY r.started_at`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var (
			rs      RunSummary
			modTime sql.NullTime
		)
		if err := rows.Scan(
			&rs.ID, &rs.Input.Path, &rs.Input.Size, &modTime,
			&rs.Config.BaseErrorRate, &rs.Config.PValueThreshold, &rs.StartedAt,
			&rs.Rows,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if modTime.Valid {
			rs.Input.ModTime = modTime.Time
		}
		out = append(out, rs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return out, nil
}

// ClearRun removes a run and its evidence rows.
func (s *Store) ClearRun(runID string) error {
	if _, err := s.db.Exec("DELETE FROM sample_evidence WHERE run_id=?", runID); err != nil {
		return fmt.Errorf("delete evidence: %w", err)
	}
	if _, err := s.db.Exec("DELETE FROM runs WHERE run_id=?", runID); err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	s.mu.Lock()
	delete(s.seen, runID)
	s.mu.Unlock()
	return nil
}

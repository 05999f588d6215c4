package output

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/smuth-go/smuth/internal/evidence"
	"github.com/smuth-go/smuth/internal/vcf"
)

// TabWriter writes one tab-delimited evidence row per sample.
type TabWriter struct {
	w           *bufio.Writer
	columns     []string
	sampleNames []string
}

// NewTabWriter creates a new tab-delimited writer. Samples without a
// name are labeled by their 0-based index.
func NewTabWriter(w io.Writer, sampleNames []string) *TabWriter {
	return &TabWriter{
		w: bufio.NewWriter(w),
		columns: []string{
			"#Location",
			"Ref",
			"Alt",
			"Sample",
			"GT_Before",
			"GT",
			"Ref_Count",
			"Alt_Count",
			"Depth",
			"Tail_Prob",
			"Evidence",
			"AF",
			"MAF",
		},
		sampleNames: sampleNames,
	}
}

// WriteHeader writes the header line.
func (tw *TabWriter) WriteHeader() error {
	_, err := tw.w.WriteString(strings.Join(tw.columns, "\t") + "\n")
	return err
}

// Write writes the verdicts of a record. Verdicts carry the genotype seen
// before relabeling; rec supplies the current one.
func (tw *TabWriter) Write(rec *vcf.Record, verdicts []evidence.Verdict) error {
	location := fmt.Sprintf("%s:%d", rec.Chromosome(), rec.Position())

	for _, v := range verdicts {
		evidenceLabel := "ABSENT"
		if v.Present {
			evidenceLabel = "PRESENT"
		}

		values := []string{
			location,
			rec.Ref(),
			rec.Alt(),
			tw.sampleName(v.Sample),
			v.Genotype,
			rec.Genotype(v.Sample),
			strconv.Itoa(v.RefCount),
			strconv.Itoa(v.AltCount),
			strconv.Itoa(v.Depth),
			strconv.FormatFloat(v.TailProb, 'g', 6, 64),
			evidenceLabel,
			formatFraction(v.AF, v.HasAF),
			formatFraction(v.MAF, v.HasAF),
		}

		if _, err := tw.w.WriteString(strings.Join(values, "\t") + "\n"); err != nil {
			return err
		}
	}
	return nil
}

func (tw *TabWriter) sampleName(i int) string {
	if i < len(tw.sampleNames) {
		return tw.sampleNames[i]
	}
	return strconv.Itoa(i)
}

func formatFraction(f float64, ok bool) string {
	if !ok {
		return "-"
	}
	return strconv.FormatFloat(f, 'f', 4, 64)
}

// Flush flushes any buffered data to the underlying writer.
func (tw *TabWriter) Flush() error {
	return tw.w.Flush()
}

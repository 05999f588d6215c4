// Package output provides writers for relabeled records and evidence tables.
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

// VCFWriter writes records in their current, possibly relabeled, state.
type VCFWriter struct {
	w           *bufio.Writer
	headerLines []string // original VCF header lines (## and #CHROM)
	cfg         evidence.Config
}

// NewVCFWriter creates a new VCF output writer.
func NewVCFWriter(w io.Writer, headerLines []string, cfg evidence.Config) *VCFWriter {
	return &VCFWriter{
		w:           bufio.NewWriter(w),
		headerLines: headerLines,
		cfg:         cfg,
	}
}

// HeaderLine returns the meta line recording the relabel parameters.
func HeaderLine(cfg evidence.Config) string {
	return fmt.Sprintf("##smuthRelabel=<BaseErrorRate=%s,PValueThreshold=%s>",
		strconv.FormatFloat(cfg.BaseErrorRate, 'g', -1, 64),
		strconv.FormatFloat(cfg.PValueThreshold, 'g', -1, 64))
}

// WriteHeader writes the original header with the relabel meta line
// inserted before #CHROM.
func (vw *VCFWriter) WriteHeader() error {
	for _, line := range vw.headerLines {
		if strings.HasPrefix(line, "#CHROM") {
			if _, err := vw.w.WriteString(HeaderLine(vw.cfg) + "\n"); err != nil {
				return err
			}
		}
		if _, err := vw.w.WriteString(line + "\n"); err != nil {
			return err
		}
	}
	return nil
}

// Write writes a single record.
func (vw *VCFWriter) Write(rec *vcf.Record) error {
	if _, err := vw.w.WriteString(rec.String()); err != nil {
		return err
	}
	return vw.w.WriteByte('\n')
}

// Flush flushes any buffered data to the underlying writer.
func (vw *VCFWriter) Flush() error {
	return vw.w.Flush()
}

package vcf

import (
	"strconv"
	"strings"
)

// Genotype strings with special meaning for relabeling.
const (
	GenotypeHomRef = "0/0"
	GenotypeHet    = "0/1"
	GenotypeNoCall = "./."
)

// SampleState is the per-sample call class.
type SampleState int

const (
	HomRef SampleState = iota
	Variant
	NoCall
)

func (s SampleState) String() string {
	switch s {
	case HomRef:
		return "HOM_REF"
	case Variant:
		return "VARIANT"
	case NoCall:
		return "NO_CALL"
	}
	return "UNKNOWN"
}

// Record is a single VCF data line with per-sample genotype and allele depth.
// Sample indexes are 0-based and refer to the same sample in every accessor.
type Record struct {
	raw string

	chrom  string
	pos    int64
	id     string
	ref    string
	alt    string
	qual   float64
	qualS  string // QUAL as written, kept for serialization
	filter string
	info   string
	format string

	samples  [][]string // colon-split sample columns; [i][0] is the genotype
	refCount []int
	altCount []int
	extra    []string // columns past the last declared sample
}

// Raw returns the line the record was parsed from.
func (r *Record) Raw() string { return r.raw }

// Chromosome returns the CHROM column.
func (r *Record) Chromosome() string { return r.chrom }

// Position returns the 1-based POS column.
func (r *Record) Position() int64 { return r.pos }

// ID returns the ID column.
func (r *Record) ID() string { return r.id }

// Ref returns the full reference allele.
func (r *Record) Ref() string { return r.ref }

// Alt returns the full alternate allele.
func (r *Record) Alt() string { return r.alt }

// RefChar returns the first base of the reference allele.
func (r *Record) RefChar() byte { return r.ref[0] }

// AltChar returns the first base of the alternate allele.
func (r *Record) AltChar() byte { return r.alt[0] }

// Quality returns the QUAL column, 0 when missing.
func (r *Record) Quality() float64 { return r.qual }

// Filter returns the FILTER column.
func (r *Record) Filter() string { return r.filter }

// Info returns the INFO column unparsed.
func (r *Record) Info() string { return r.info }

// Format returns the FORMAT column.
func (r *Record) Format() string { return r.format }

// NumSamples returns the number of sample columns.
func (r *Record) NumSamples() int { return len(r.samples) }

// Genotype returns the GT sub-field of the sample.
func (r *Record) Genotype(sample int) string { return r.samples[sample][0] }

// Genotypes returns a copy of all genotypes in sample order.
func (r *Record) Genotypes() []string {
	gts := make([]string, len(r.samples))
	for i, s := range r.samples {
		gts[i] = s[0]
	}
	return gts
}

// State classifies the sample's current genotype.
func (r *Record) State(sample int) SampleState {
	switch r.Genotype(sample) {
	case GenotypeHomRef:
		return HomRef
	case GenotypeNoCall:
		return NoCall
	}
	return Variant
}

// SampleField returns the sample column as it would be written out.
func (r *Record) SampleField(sample int) string {
	return strings.Join(r.samples[sample], ":")
}

// RefCount returns the reference allele depth, 0 for no-calls.
func (r *Record) RefCount(sample int) int { return r.refCount[sample] }

// AltCount returns the alternate allele depth, 0 for no-calls.
func (r *Record) AltCount(sample int) int { return r.altCount[sample] }

// ReadDepth returns RefCount + AltCount. It is 0 for no-calls and also for
// called genotypes whose AD is 0,0, which are accepted as is.
func (r *Record) ReadDepth(sample int) int {
	return r.refCount[sample] + r.altCount[sample]
}

// ChromNum returns the chromosome ordinal (X=23, Y=24).
func (r *Record) ChromNum() (int, error) {
	return ChromNum(r.chrom)
}

// String serializes the record in its current state. It equals Raw until
// the record has been relabeled.
func (r *Record) String() string {
	var sb strings.Builder
	sb.Grow(len(r.raw) + 8)

	sb.WriteString(r.chrom)
	sb.WriteByte('\t')
	sb.WriteString(strconv.FormatInt(r.pos, 10))
	sb.WriteByte('\t')
	sb.WriteString(r.id)
	sb.WriteByte('\t')
	sb.WriteString(r.ref)
	sb.WriteByte('\t')
	sb.WriteString(r.alt)
	sb.WriteByte('\t')
	sb.WriteString(r.qualS)
	sb.WriteByte('\t')
	sb.WriteString(r.filter)
	sb.WriteByte('\t')
	sb.WriteString(r.info)
	sb.WriteByte('\t')
	sb.WriteString(r.format)
	for i := range r.samples {
		sb.WriteByte('\t')
		sb.WriteString(r.SampleField(i))
	}
	for _, col := range r.extra {
		sb.WriteByte('\t')
		sb.WriteString(col)
	}
	return sb.String()
}

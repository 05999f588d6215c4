// Package vcf provides VCF record parsing and per-sample genotype handling.
package vcf

// SNVRecord is implemented by single-nucleotide records that carry
// per-sample genotype calls. VCF lines are the only source today; other
// call formats plug in by implementing the same methods.
type SNVRecord interface {
	Chromosome() string
	// ChromNum maps the chromosome label to 1-24 for ordering.
	ChromNum() (int, error)
	Position() int64
	RefChar() byte
	AltChar() byte

	NumSamples() int
	Genotype(sample int) string

	// Group returns one '0'/'1' character per sample.
	Group() string
	// ApplyGroup relabels samples whose class disagrees with code and
	// returns the number of samples changed.
	ApplyGroup(code string) (int, error)

	// String returns the record serialized in its current state.
	String() string
}

// RecordReader is the interface for readers that stream records.
type RecordReader interface {
	// Next reads the next record.
	// Returns nil, nil when there are no more records.
	Next() (*Record, error)

	// Header returns the header lines read before the first record.
	Header() []string

	// SampleNames returns the sample column names in order.
	SampleNames() []string

	// Close closes the reader and releases resources.
	Close() error

	// LineNumber returns the current line number being processed.
	LineNumber() int
}

var _ SNVRecord = (*Record)(nil)
var _ RecordReader = (*Parser)(nil)

package vcf

import "fmt"

// ParseError represents an error during VCF parsing with line context.
// Line is 0 when the record was parsed outside a file.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	if e.Line == 0 {
		return "vcf parse error: " + e.Message
	}
	return fmt.Sprintf("vcf parse error at line %d: %s", e.Line, e.Message)
}

// InvalidChromosomeError is returned when a chromosome label has no ordinal.
type InvalidChromosomeError struct {
	Chrom string
}

func (e *InvalidChromosomeError) Error() string {
	return fmt.Sprintf("invalid chromosome %q: expected chr1-chr22, chrX or chrY", e.Chrom)
}

// ArityError is returned when a group code does not match the record's
// samples, either in length or alphabet.
type ArityError struct {
	Want int
	Got  int
	Code string
}

func (e *ArityError) Error() string {
	if e.Want != e.Got {
		return fmt.Sprintf("group code %q has %d characters, record has %d samples", e.Code, e.Got, e.Want)
	}
	return fmt.Sprintf("group code %q may only contain '0' and '1'", e.Code)
}

package vcf

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// fixedColumns is the number of columns before the first sample column.
const fixedColumns = 9

// adFallbackIndex is the allele-depth sub-field used when FORMAT has no AD key.
const adFallbackIndex = 1

// ParseRecord parses a single tab-delimited VCF data line holding
// numSamples sample columns.
func ParseRecord(line string, numSamples int) (*Record, error) {
	rec, msg := parseRecord(strings.TrimRight(line, "\r\n"), numSamples)
	if msg != "" {
		return nil, &ParseError{Message: msg}
	}
	return rec, nil
}

// parseRecord does the work of ParseRecord and reports failures as a message
// so callers can attach their own line context.
func parseRecord(line string, numSamples int) (*Record, string) {
	fields := strings.Split(line, "\t")
	if len(fields) < fixedColumns+numSamples {
		return nil, fmt.Sprintf("expected at least %d columns for %d samples, found %d",
			fixedColumns+numSamples, numSamples, len(fields))
	}

	pos, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil || pos < 1 {
		return nil, fmt.Sprintf("invalid position: %s", fields[1])
	}

	if fields[3] == "" || fields[4] == "" {
		return nil, "empty REF or ALT allele"
	}

	qual := 0.0
	if fields[5] != "." {
		qual, err = strconv.ParseFloat(fields[5], 64)
		if err != nil {
			return nil, fmt.Sprintf("invalid quality: %s", fields[5])
		}
	}

	r := &Record{
		raw:      line,
		chrom:    fields[0],
		pos:      pos,
		id:       fields[2],
		ref:      fields[3],
		alt:      fields[4],
		qual:     qual,
		qualS:    fields[5],
		filter:   fields[6],
		info:     fields[7],
		format:   fields[8],
		samples:  make([][]string, numSamples),
		refCount: make([]int, numSamples),
		altCount: make([]int, numSamples),
	}
	if len(fields) > fixedColumns+numSamples {
		r.extra = fields[fixedColumns+numSamples:]
	}

	adIndex := formatIndex(fields[8], "AD")
	if adIndex < 0 {
		adIndex = adFallbackIndex
	}

	for i := 0; i < numSamples; i++ {
		parts := strings.Split(fields[fixedColumns+i], ":")
		r.samples[i] = parts
		if parts[0] == GenotypeNoCall {
			continue
		}

		if adIndex >= len(parts) {
			return nil, fmt.Sprintf("sample %d: missing allele depth for genotype %s", i, parts[0])
		}
		ref, alt, ok := parseAlleleDepth(parts[adIndex])
		if !ok {
			return nil, fmt.Sprintf("sample %d: invalid allele depth: %s", i, parts[adIndex])
		}
		r.refCount[i] = ref
		r.altCount[i] = alt
	}

	return r, ""
}

// parseAlleleDepth splits "ref,alt" into two non-negative integers.
func parseAlleleDepth(s string) (int, int, bool) {
	refStr, altStr, found := strings.Cut(s, ",")
	if !found || strings.Contains(altStr, ",") {
		return 0, 0, false
	}
	ref, err := strconv.Atoi(refStr)
	if err != nil || ref < 0 {
		return 0, 0, false
	}
	alt, err := strconv.Atoi(altStr)
	if err != nil || alt < 0 {
		return 0, 0, false
	}
	return ref, alt, true
}

// formatIndex returns the position of key in a colon-delimited FORMAT
// column, or -1.
func formatIndex(format, key string) int {
	for i, k := range strings.Split(format, ":") {
		if k == key {
			return i
		}
	}
	return -1
}

// Parser reads records from a VCF file.
type Parser struct {
	reader      *bufio.Reader
	file        *os.File
	gzipReader  *gzip.Reader
	lineNumber  int
	header      []string
	sampleNames []string // sample names from #CHROM header line
}

// NewParser creates a new VCF parser for the given file, or stdin for "-".
// Supports both plain VCF and gzipped VCF (.vcf.gz) input.
func NewParser(path string) (*Parser, error) {
	if path == "-" {
		return NewParserFromReader(os.Stdin)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vcf file: %w", err)
	}

	p, err := newParser(file)
	if err != nil {
		file.Close()
		return nil, err
	}
	p.file = file
	return p, nil
}

// NewParserFromReader creates a parser from an io.Reader (e.g., stdin).
// Gzipped input is detected from its magic bytes.
func NewParserFromReader(r io.Reader) (*Parser, error) {
	return newParser(r)
}

func newParser(r io.Reader) (*Parser, error) {
	br := bufio.NewReader(r)
	p := &Parser{reader: br}

	// Check for gzip magic bytes
	magic, err := br.Peek(2)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("read vcf header: %w", err)
	}
	if len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		p.gzipReader, err = gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("create gzip reader: %w", err)
		}
		p.reader = bufio.NewReader(p.gzipReader)
	}

	if err := p.parseHeader(); err != nil {
		if p.gzipReader != nil {
			p.gzipReader.Close()
		}
		return nil, err
	}

	return p, nil
}

// parseHeader reads and stores VCF header lines.
func (p *Parser) parseHeader() error {
	for {
		line, err := p.reader.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("read header: %w", err)
		}
		p.lineNumber++

		line = strings.TrimRight(line, "\r\n")

		if strings.HasPrefix(line, "##") {
			p.header = append(p.header, line)
			continue
		}

		if strings.HasPrefix(line, "#CHROM") {
			p.header = append(p.header, line)
			fields := strings.Split(line, "\t")
			if len(fields) > fixedColumns {
				p.sampleNames = fields[fixedColumns:]
			}
			return nil
		}

		return &ParseError{
			Line:    p.lineNumber,
			Message: "expected #CHROM header line",
		}
	}

	return &ParseError{
		Line:    p.lineNumber,
		Message: "no #CHROM header line found",
	}
}

// Next reads the next record from the VCF file.
// Returns nil, nil when there are no more records.
func (p *Parser) Next() (*Record, error) {
	for {
		line, err := p.reader.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			if err == io.EOF {
				return nil, nil
			}
			return nil, fmt.Errorf("read record line: %w", err)
		}
		p.lineNumber++

		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue
		}

		rec, msg := parseRecord(line, len(p.sampleNames))
		if msg != "" {
			return nil, &ParseError{Line: p.lineNumber, Message: msg}
		}
		return rec, nil
	}
}

// Header returns the VCF header lines.
func (p *Parser) Header() []string {
	return p.header
}

// SampleNames returns sample names from the #CHROM header line.
// Returns nil if no sample columns are present.
func (p *Parser) SampleNames() []string {
	return p.sampleNames
}

// LineNumber returns the current line number being processed.
func (p *Parser) LineNumber() int {
	return p.lineNumber
}

// Close closes the parser and underlying file.
func (p *Parser) Close() error {
	if p.gzipReader != nil {
		p.gzipReader.Close()
	}
	if p.file != nil {
		return p.file.Close()
	}
	return nil
}

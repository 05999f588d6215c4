package vcf

import (
	"strconv"
	"strings"
)

// Chromosome ordinals for the sex chromosomes.
const (
	ChromX = 23
	ChromY = 24
)

// chromPrefixLen is the length of the "chr" naming prefix.
const chromPrefixLen = 3

// ChromNum maps a chromosome label such as "chr7" or "chrX" to its ordinal.
// The label must carry the 3-character "chr" prefix (any case). X is 23 and
// Y is 24.
func ChromNum(chrom string) (int, error) {
	if len(chrom) <= chromPrefixLen || !strings.EqualFold(chrom[:chromPrefixLen], "chr") {
		return 0, &InvalidChromosomeError{Chrom: chrom}
	}
	suffix := chrom[chromPrefixLen:]

	switch suffix[len(suffix)-1] {
	case 'X':
		return ChromX, nil
	case 'Y':
		return ChromY, nil
	}

	n, err := strconv.Atoi(suffix)
	if err != nil || n < 1 {
		return 0, &InvalidChromosomeError{Chrom: chrom}
	}
	return n, nil
}

package vcf

import "strings"

// Group classes used in group codes.
const (
	GroupRef     = '0'
	GroupVariant = '1'
)

// Group returns the group code of the record: '0' for every sample called
// 0/0 and '1' for everything else, no-calls included.
func (r *Record) Group() string {
	var sb strings.Builder
	sb.Grow(len(r.samples))
	for i := range r.samples {
		if r.Genotype(i) == GenotypeHomRef {
			sb.WriteByte(GroupRef)
		} else {
			sb.WriteByte(GroupVariant)
		}
	}
	return sb.String()
}

// ApplyGroup relabels each sample whose class disagrees with code: a 0/0
// sample coded '1' becomes 0/1 and any other sample coded '0' becomes 0/0.
// Only the GT sub-field changes. It returns the number of samples relabeled.
//
// ApplyGroup is not safe for concurrent use on the same record.
func (r *Record) ApplyGroup(code string) (int, error) {
	if len(code) != len(r.samples) {
		return 0, &ArityError{Want: len(r.samples), Got: len(code), Code: code}
	}
	if strings.Trim(code, "01") != "" {
		return 0, &ArityError{Want: len(r.samples), Got: len(code), Code: code}
	}

	changed := 0
	for i := range r.samples {
		isRef := r.Genotype(i) == GenotypeHomRef
		switch {
		case isRef && code[i] == GroupVariant:
			r.samples[i][0] = GenotypeHet
		case !isRef && code[i] == GroupRef:
			r.samples[i][0] = GenotypeHomRef
		default:
			continue
		}
		changed++
	}
	return changed, nil
}

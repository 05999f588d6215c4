package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smuth-go/smuth/internal/evidence"
	"github.com/smuth-go/smuth/internal/vcf"
)

func TestTabWriter_WriteHeader(t *testing.T) {
	var buf bytes.Buffer
	w := NewTabWriter(&buf, nil)

	require.NoError(t, w.WriteHeader())
	require.NoError(t, w.Flush())

	header := buf.String()
	for _, col := range []string{"#Location", "Sample", "GT_Before", "Tail_Prob", "Evidence", "MAF"} {
		assert.Contains(t, header, col)
	}
}

func TestTabWriter_Write(t *testing.T) {
	rec, err := vcf.ParseRecord("chr1\t100\trs1\tA\tT\t50\tPASS\t.\tGT:AD\t0/0:10,0\t0/0:6,4\t./.", 3)
	require.NoError(t, err)

	e, err := evidence.NewEngine(testConfig)
	require.NoError(t, err)
	verdicts := e.Evaluate(rec)
	_, err = rec.ApplyGroup("011")
	require.NoError(t, err)

	var buf bytes.Buffer
	w := NewTabWriter(&buf, []string{"normal", "tumor"})
	require.NoError(t, w.Write(rec, verdicts))
	require.NoError(t, w.Flush())

	rows := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, rows, 3)

	assert.Equal(t, "chr1:100\tA\tT\tnormal\t0/0\t0/0\t10\t0\t10\t1\tPRESENT\t0.0000\t0.0000", rows[0])

	tumor := strings.Split(rows[1], "\t")
	assert.Equal(t, "tumor", tumor[3])
	assert.Equal(t, "0/0", tumor[4])
	assert.Equal(t, "0/1", tumor[5])
	assert.Equal(t, "ABSENT", tumor[10])
	assert.Equal(t, "0.4000", tumor[11])

	noCall := strings.Split(rows[2], "\t")
	assert.Equal(t, "2", noCall[3])
	assert.Equal(t, "-", noCall[11])
	assert.Equal(t, "-", noCall[12])
}

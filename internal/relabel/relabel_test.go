package relabel

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/smuth-go/smuth/internal/evidence"
	"github.com/smuth-go/smuth/internal/vcf"
)

func newRelabeler(t *testing.T) *Relabeler {
	t.Helper()
	e, err := evidence.NewEngine(evidence.Config{BaseErrorRate: 0.01, PValueThreshold: 0.05})
	require.NoError(t, err)
	return NewRelabeler(e)
}

func parse(t *testing.T, line string, samples int) *vcf.Record {
	t.Helper()
	r, err := vcf.ParseRecord(line, samples)
	require.NoError(t, err)
	return r
}

func TestCode(t *testing.T) {
	verdicts := []evidence.Verdict{
		{State: vcf.HomRef, Depth: 10, Present: false},
		{State: vcf.Variant, Depth: 10, Present: true},
		{State: vcf.HomRef, Depth: 30, Present: true},
		{State: vcf.Variant, Depth: 40, Present: false},
		{State: vcf.NoCall, Depth: 0, Present: true},
		{State: vcf.HomRef, Depth: 0, Present: true},
		{State: vcf.Variant, Depth: 0, Present: true},
	}
	assert.Equal(t, "1001101", Code(verdicts))
}

func TestRelabel_FlipsContradictedCalls(t *testing.T) {
	rl := newRelabeler(t)
	// normal: clean ref; tumor_a: called 0/1 on a single alt read in 20;
	// tumor_b: called 0/0 despite 9 alt reads; tumor_c: no call.
	r := parse(t, "chr2\t2500\t.\tC\tG\t33.5\tPASS\t.\tGT:AD:DP\t0/0:25,0:25\t0/1:19,1:20\t0/0:20,9:29\t./.:.:0", 4)

	res, err := rl.Relabel(r)
	require.NoError(t, err)

	assert.Equal(t, "0101", res.Before)
	assert.Equal(t, "0011", res.Applied)
	assert.Equal(t, 2, res.Changed)
	assert.Equal(t, "0011", r.Group())
	assert.Equal(t, []string{"0/0", "0/0", "0/1", "./."}, r.Genotypes())
	assert.Equal(t, "0/0:19,1:20", r.SampleField(1))
	assert.Equal(t, "0/1:20,9:29", r.SampleField(2))

	// Verdicts describe the record as it was read.
	assert.Equal(t, "0/1", res.Verdicts[1].Genotype)
	assert.Equal(t, "0/0", res.Verdicts[2].Genotype)
}

func TestRelabel_CalledGenotypeWithoutReadsKeepsClass(t *testing.T) {
	rl := newRelabeler(t)
	r := parse(t, "chr1\t100\t.\tA\tT\t50\tPASS\t.\tGT:AD\t0/0:0,0\t0/1:0,0", 2)

	res, err := rl.Relabel(r)
	require.NoError(t, err)
	assert.Equal(t, "01", res.Applied)
	assert.Equal(t, 0, res.Changed)
	assert.Equal(t, 1.0, res.Verdicts[1].TailProb)
	assert.False(t, res.Verdicts[1].HasAF)
}

func TestRelabel_SecondPassIsNoOp(t *testing.T) {
	rl := newRelabeler(t)
	r := parse(t, "chr1\t100\trs1\tA\tT\t50\tPASS\t.\tGT:AD\t0/0:10,0\t0/0:6,4", 2)

	first, err := rl.Relabel(r)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Changed)
	after := r.String()

	second, err := rl.Relabel(r)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Changed)
	assert.Equal(t, after, r.String())
}

func TestRelabel_DryRunLeavesRecord(t *testing.T) {
	rl := newRelabeler(t)
	rl.SetDryRun(true)
	line := "chr1\t100\trs1\tA\tT\t50\tPASS\t.\tGT:AD\t0/0:10,0\t0/0:6,4"
	r := parse(t, line, 2)

	res, err := rl.Relabel(r)
	require.NoError(t, err)
	assert.Equal(t, "01", res.Applied)
	assert.Equal(t, 0, res.Changed)
	assert.Equal(t, line, r.String())
}

func TestRelabel_LogsChanges(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	rl := newRelabeler(t)
	rl.SetLogger(zap.New(core))

	r := parse(t, "chr1\t100\trs1\tA\tT\t50\tPASS\t.\tGT:AD\t0/0:10,0\t0/0:6,4", 2)
	_, err := rl.Relabel(r)
	require.NoError(t, err)

	entries := logs.FilterMessage("relabeled record").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "00", fields["before"])
	assert.Equal(t, "01", fields["after"])
	assert.Equal(t, int64(1), fields["changed"])
}

func makeItems(t *testing.T, n int) <-chan WorkItem {
	ch := make(chan WorkItem, n)
	for i := range n {
		line := fmt.Sprintf("chr1\t%d\t.\tA\tT\t50\tPASS\t.\tGT:AD\t0/0:20,%d\t0/1:20,%d", 100+i, i%5, i%3)
		ch <- WorkItem{Seq: i, Line: i + 2, Record: parse(t, line, 2)}
	}
	close(ch)
	return ch
}

func TestParallel_OrderPreservation(t *testing.T) {
	rl := newRelabeler(t)

	results := rl.Parallel(makeItems(t, 200), 8)

	var collected []int
	err := OrderedCollect(results, func(r WorkResult) error {
		require.NoError(t, r.Err)
		assert.Equal(t, r.Seq+2, r.Line)
		assert.Equal(t, int64(100+r.Seq), r.Record.Position())
		collected = append(collected, r.Seq)
		return nil
	})
	require.NoError(t, err)

	assert.Len(t, collected, 200)
	for i, seq := range collected {
		assert.Equal(t, i, seq, "result %d out of order", i)
	}
}

func TestParallel_MatchesSerial(t *testing.T) {
	rl := newRelabeler(t)

	want := make(map[int]string)
	for item := range makeItems(t, 60) {
		_, err := rl.Relabel(item.Record)
		require.NoError(t, err)
		want[item.Seq] = item.Record.Group()
	}

	results := rl.Parallel(makeItems(t, 60), 0)
	err := OrderedCollect(results, func(r WorkResult) error {
		assert.Equal(t, want[r.Seq], r.Record.Group(), "seq %d", r.Seq)
		return nil
	})
	require.NoError(t, err)
}

func TestOrderedCollect_StopsOnError(t *testing.T) {
	rl := newRelabeler(t)
	results := rl.Parallel(makeItems(t, 100), 4)

	stop := errors.New("stop")
	seen := 0
	err := OrderedCollect(results, func(r WorkResult) error {
		seen++
		if r.Seq == 10 {
			return stop
		}
		return nil
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 11, seen)
}

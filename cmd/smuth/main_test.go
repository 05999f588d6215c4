package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smuth-go/smuth/internal/duckdb"
	"github.com/smuth-go/smuth/internal/relabel"
	"github.com/smuth-go/smuth/internal/vcf"
)

const testVCF = "##fileformat=VCFv4.2\n" +
	"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tnormal\ttumor\n" +
	"chr1\t100\trs1\tA\tT\t50\tPASS\t.\tGT:AD:DP\t0/0:10,0:10\t0/0:6,4:10\n" +
	"chr2\t2500\t.\tC\tG\t33.5\tPASS\t.\tGT:AD:DP\t0/0:25,0:25\t0/1:19,1:20\n" +
	"chr3\t77\t.\tG\tA\t40\tPASS\t.\tGT:AD:DP\t0/0:30,0:30\t0/1:15,15:30\n"

// setup isolates viper state and HOME, and writes the test VCF.
func setup(t *testing.T, content string) string {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	home := t.TempDir()
	t.Setenv("HOME", home)

	path := filepath.Join(t.TempDir(), "input.vcf")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func execute(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func dataLines(s string) []string {
	var out []string
	for _, line := range strings.Split(strings.TrimSuffix(s, "\n"), "\n") {
		if !strings.HasPrefix(line, "#") {
			out = append(out, line)
		}
	}
	return out
}

func TestRelabel_Stdout(t *testing.T) {
	input := setup(t, testVCF)

	code, stdout, stderr := execute(t, "relabel", "--error-rate", "0.01", "--pvalue", "0.05", "--workers", "2", input)
	require.Equal(t, ExitSuccess, code, stderr)

	assert.Contains(t, stdout, "##smuthRelabel=<BaseErrorRate=0.01,PValueThreshold=0.05>\n#CHROM")

	lines := dataLines(stdout)
	require.Len(t, lines, 3)
	assert.Equal(t, "chr1\t100\trs1\tA\tT\t50\tPASS\t.\tGT:AD:DP\t0/0:10,0:10\t0/1:6,4:10", lines[0])
	assert.Equal(t, "chr2\t2500\t.\tC\tG\t33.5\tPASS\t.\tGT:AD:DP\t0/0:25,0:25\t0/0:19,1:20", lines[1])
	assert.Equal(t, "chr3\t77\t.\tG\tA\t40\tPASS\t.\tGT:AD:DP\t0/0:30,0:30\t0/1:15,15:30", lines[2])
}

func TestRelabel_TableAndStore(t *testing.T) {
	input := setup(t, testVCF)
	dir := t.TempDir()
	out := filepath.Join(dir, "out.vcf")
	table := filepath.Join(dir, "evidence.tsv")
	db := filepath.Join(dir, "runs.duckdb")

	code, _, stderr := execute(t, "relabel",
		"--error-rate", "0.01", "--pvalue", "0.05",
		"-o", out, "--table", table, "--db", db, input)
	require.Equal(t, ExitSuccess, code, stderr)

	vcfOut, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Len(t, dataLines(string(vcfOut)), 3)

	tsv, err := os.ReadFile(table)
	require.NoError(t, err)
	rows := dataLines(string(tsv))
	require.Len(t, rows, 6)
	assert.True(t, strings.HasPrefix(rows[1], "chr1:100\tA\tT\ttumor\t0/0\t0/1\t6\t4\t10\t"))

	store, err := duckdb.Open(db)
	require.NoError(t, err)
	defer store.Close()

	runs, err := store.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, int64(6), runs[0].Rows)
	assert.Equal(t, 0.01, runs[0].Config.BaseErrorRate)

	site, err := store.LookupSite("chr2", 2500)
	require.NoError(t, err)
	require.Len(t, site, 2)
	assert.Equal(t, "0/1", site[1].GenotypeBefore)
	assert.Equal(t, "0/0", site[1].GenotypeAfter)
}

func TestEvidence_DoesNotRelabel(t *testing.T) {
	input := setup(t, testVCF)

	code, stdout, stderr := execute(t, "evidence", "--error-rate", "0.01", "--pvalue", "0.05", input)
	require.Equal(t, ExitSuccess, code, stderr)

	rows := dataLines(stdout)
	require.Len(t, rows, 6)
	tumor := strings.Split(rows[1], "\t")
	assert.Equal(t, "0/0", tumor[4])
	assert.Equal(t, "0/0", tumor[5])
	assert.Equal(t, "ABSENT", tumor[10])
}

func TestRelabel_ConfigFileAndEnv(t *testing.T) {
	input := setup(t, testVCF)
	cfgPath := filepath.Join(t.TempDir(), "smuth.yaml")
	cfg := "evidence:\n  base_error_rate: 0.01\n  pvalue_threshold: 0.05\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0644))

	code, stdout, stderr := execute(t, "--config", cfgPath, "relabel", input)
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Contains(t, stdout, "BaseErrorRate=0.01,PValueThreshold=0.05")

	viper.Reset()
	t.Setenv("SMUTH_EVIDENCE_PVALUE_THRESHOLD", "0.2")
	code, stdout, stderr = execute(t, "--config", cfgPath, "relabel", input)
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Contains(t, stdout, "PValueThreshold=0.2>")
}

func TestRelabel_MalformedRecord(t *testing.T) {
	bad := testVCF + "chr4\tabc\t.\tA\tT\t50\tPASS\t.\tGT:AD\t0/0:1,0\t0/0:1,0\n" +
		"chr5\t9\t.\tA\tT\t50\tPASS\t.\tGT:AD\t0/0:1,0\t0/0:1,0\n"
	input := setup(t, bad)

	code, _, stderr := execute(t, "relabel", input)
	assert.Equal(t, ExitError, code)
	assert.Contains(t, stderr, "line 6")

	code, stdout, stderr := execute(t, "relabel", "--skip-invalid", input)
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Len(t, dataLines(stdout), 4)
}

func TestReadRecords_LineNumbers(t *testing.T) {
	bad := testVCF + "chr4\tabc\t.\tA\tT\t50\tPASS\t.\tGT:AD\t0/0:1,0\t0/0:1,0\n" +
		"\n" +
		"chr5\t9\t.\tA\tT\t50\tPASS\t.\tGT:AD\t0/0:1,0\t0/0:1,0\n"
	parser, err := vcf.NewParserFromReader(strings.NewReader(bad))
	require.NoError(t, err)

	items := make(chan relabel.WorkItem, 10)
	skipped, err := readRecords(context.Background(), parser, items, true, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 1, skipped)

	var lines []int
	for item := range items {
		assert.Equal(t, len(lines), item.Seq)
		lines = append(lines, item.Line)
	}
	assert.Equal(t, []int{3, 4, 5, 8}, lines)
}

func TestReadRecords_StopsOnMalformed(t *testing.T) {
	bad := testVCF + "chr4\tabc\t.\tA\tT\t50\tPASS\t.\tGT:AD\t0/0:1,0\t0/0:1,0\n"
	parser, err := vcf.NewParserFromReader(strings.NewReader(bad))
	require.NoError(t, err)

	items := make(chan relabel.WorkItem, 10)
	_, err = readRecords(context.Background(), parser, items, false, zap.NewNop())
	var perr *vcf.ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 6, perr.Line)
	assert.Len(t, items, 3)
}

func TestRelabel_UsageErrors(t *testing.T) {
	input := setup(t, testVCF)

	code, _, _ := execute(t, "relabel")
	assert.Equal(t, ExitUsage, code)

	code, _, _ = execute(t, "relabel", "--no-such-flag", input)
	assert.Equal(t, ExitUsage, code)

	code, _, stderr := execute(t, "relabel", "--error-rate", "1.5", input)
	assert.Equal(t, ExitUsage, code)
	assert.Contains(t, stderr, "base_error_rate")

	code, _, _ = execute(t, "relabel", filepath.Join(t.TempDir(), "missing.vcf"))
	assert.Equal(t, ExitError, code)
}

func TestConfigSetGet(t *testing.T) {
	setup(t, testVCF)

	code, stdout, stderr := execute(t, "config", "set", "evidence.base_error_rate", "0.02")
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Contains(t, stdout, "Set evidence.base_error_rate = 0.02")

	viper.Reset()
	code, stdout, stderr = execute(t, "config", "get", "evidence.base_error_rate")
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Equal(t, "0.02\n", stdout)

	code, _, _ = execute(t, "config", "set", "evidence.pvalue_threshold", "2")
	assert.Equal(t, ExitUsage, code)

	code, _, _ = execute(t, "config", "set", "workers", "many")
	assert.Equal(t, ExitUsage, code)
}

func TestVersion(t *testing.T) {
	setup(t, testVCF)

	code, stdout, _ := execute(t, "version")
	assert.Equal(t, ExitSuccess, code)
	assert.Equal(t, "smuth version dev (none) built unknown\n", stdout)
}

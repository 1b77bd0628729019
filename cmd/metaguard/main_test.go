package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/openmined/metaguard/internal/metastore"
	"github.com/openmined/metaguard/internal/remote"
	"github.com/openmined/metaguard/internal/version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// locatedSource adds a bucket location to the in-memory source.
type locatedSource struct {
	*remote.MemSource
	location string
}

func (s *locatedSource) Location(context.Context) (string, error) {
	return s.location, nil
}

type harness struct {
	t       *testing.T
	src     *locatedSource
	dir     string
	meta    string
	now     time.Time
	buckets []string
}

type result struct {
	code   int
	stdout string
	stderr string
}

func newHarness(t *testing.T) *harness {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	color.NoColor = true
	return &harness{
		t:    t,
		src:  &locatedSource{MemSource: remote.NewMemSource(), location: "eu-west-1"},
		dir:  dir,
		meta: "sqlite://" + filepath.Join(dir, "meta.db"),
		now:  time.Now(),
	}
}

func (h *harness) run(args ...string) result {
	h.t.Helper()
	var stdout, stderr bytes.Buffer
	d := deps{
		newSource: func(_ context.Context, cfg *remote.S3Config) (remote.Source, error) {
			h.buckets = append(h.buckets, cfg.Bucket)
			return h.src, nil
		},
		openStore: metastore.Open,
		now:       func() time.Time { return h.now },
	}
	code := run(context.Background(), d, append([]string{"--meta", h.meta}, args...), &stdout, &stderr)
	return result{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func TestImportThenDiffIsClean(t *testing.T) {
	h := newHarness(t)
	h.src.PutFile("/data/a.csv", 10, 1000)
	h.src.PutFile("/data/b.csv", 20, 2000)
	h.src.PutDir("/data/empty")

	res := h.run("import", "s3a://bucket/")
	require.Equal(t, exitSuccess, res.code, res.stderr)
	assert.Equal(t, "Inserted 3 items into Metadata Store\n", res.stdout)
	assert.Equal(t, []string{"bucket"}, h.buckets)

	res = h.run("diff", "s3a://bucket")
	require.Equal(t, exitSuccess, res.code, res.stderr)
	assert.Empty(t, res.stdout)
}

func TestDiffRemoteOnly(t *testing.T) {
	h := newHarness(t)
	h.src.PutFile("/dir/file1", 10, 100)

	require.Equal(t, exitSuccess, h.run("init").code)

	res := h.run("diff", "s3a://bucket/")
	require.Equal(t, exitSuccess, res.code, res.stderr)
	assert.Equal(t, "S3\tD\t0\t/dir\nS3\tF\t10\t/dir/file1\n", res.stdout)

	res = h.run("diff", "--output", "json", "s3a://bucket/dir/file1")
	require.Equal(t, exitSuccess, res.code, res.stderr)
	assert.Equal(t, `{"side":"S3","kind":"F","size":10,"mtime":100,"path":"/dir/file1"}`+"\n", res.stdout)
}

func TestDiffWithoutStore(t *testing.T) {
	h := newHarness(t)
	h.src.PutFile("/f", 1, 1)

	res := h.run("diff", "s3a://bucket/")
	assert.Equal(t, exitNotFound, res.code)
	assert.Contains(t, res.stderr, "metadata store does not exist")
}

func TestDiffUsage(t *testing.T) {
	h := newHarness(t)

	res := h.run("diff")
	assert.Equal(t, exitUsage, res.code)
	assert.Contains(t, res.stderr, "no arguments")
	assert.Contains(t, res.stderr, "Usage:")

	res = h.run("diff", "--output", "xml", "s3a://bucket/")
	assert.Equal(t, exitUsage, res.code)

	res = h.run("diff", "--bogus", "s3a://bucket/")
	assert.Equal(t, exitUsage, res.code)

	res = h.run("diff", "http://bucket/path")
	assert.Equal(t, exitInvalidArgument, res.code)
}

func TestImportMissingPath(t *testing.T) {
	h := newHarness(t)

	res := h.run("import", "s3a://bucket/nope")
	assert.Equal(t, exitNotFound, res.code)
}

func TestImportDiffExclude(t *testing.T) {
	h := newHarness(t)
	h.src.PutFile("/data/a.csv", 10, 1000)
	h.src.PutFile("/data/tmp/x", 5, 1000)

	res := h.run("import", "--exclude", "data/tmp", "s3a://bucket/")
	require.Equal(t, exitSuccess, res.code, res.stderr)
	assert.Equal(t, "Inserted 1 items into Metadata Store\n", res.stdout)

	res = h.run("diff", "-x", "data/tmp", "s3a://bucket/")
	require.Equal(t, exitSuccess, res.code, res.stderr)
	assert.Empty(t, res.stdout)

	res = h.run("diff", "s3a://bucket/")
	require.Equal(t, exitSuccess, res.code, res.stderr)
	assert.Equal(t, "S3\tD\t0\t/data/tmp\nS3\tF\t5\t/data/tmp/x\n", res.stdout)

	res = h.run("diff", "--exclude", "[", "s3a://bucket/")
	assert.Equal(t, exitInvalidArgument, res.code)
}

func TestPruneRequiresAge(t *testing.T) {
	h := newHarness(t)

	res := h.run("prune")
	assert.Equal(t, exitUsage, res.code)
	assert.Contains(t, res.stderr, "positive age")

	// the store was never opened
	_, err := os.Stat(filepath.Join(h.dir, "meta.db"))
	assert.True(t, os.IsNotExist(err))
}

func TestPruneRejectsBadAge(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, exitSuccess, h.run("init").code)

	for _, args := range [][]string{
		{"prune", "--days", "1", "--hours=-23"},
		{"prune", "--days", "213504"},
	} {
		res := h.run(args...)
		assert.Equal(t, exitUsage, res.code, args)
		assert.NotContains(t, res.stdout, "Pruned", args)
	}
}

func TestPrune(t *testing.T) {
	h := newHarness(t)
	h.src.PutFile("/logs/old1", 1, 1000)
	h.src.PutFile("/logs/old2", 1, 2000)
	h.src.PutFile("/logs/fresh", 1, h.now.UnixMilli())
	require.Equal(t, exitSuccess, h.run("import", "s3a://bucket/").code)

	res := h.run("prune", "--days", "1")
	require.Equal(t, exitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Pruned 2 entries")
	assert.Contains(t, res.stdout, "1 day ago")

	res = h.run("diff", "s3a://bucket/")
	require.Equal(t, exitSuccess, res.code, res.stderr)
	assert.Equal(t, "S3\tF\t1\t/logs/old1\nS3\tF\t1\t/logs/old2\n", res.stdout)
}

func TestPruneConfiguredAge(t *testing.T) {
	h := newHarness(t)
	t.Setenv("METAGUARD_PRUNE_AGE", "1h")
	h.src.PutFile("/f", 1, h.now.Add(-2*time.Hour).UnixMilli())
	require.Equal(t, exitSuccess, h.run("import", "s3a://bucket/").code)

	res := h.run("prune")
	require.Equal(t, exitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Pruned 1 entries")
}

func TestPruneMissingStore(t *testing.T) {
	h := newHarness(t)

	res := h.run("prune", "--hours", "1")
	assert.Equal(t, exitNotFound, res.code)
}

func TestInitAndDestroy(t *testing.T) {
	h := newHarness(t)

	res := h.run("destroy")
	require.Equal(t, exitSuccess, res.code, res.stderr)
	assert.Equal(t, "Metadata Store does not exist.\n", res.stdout)

	res = h.run("init")
	require.Equal(t, exitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Metadata Store Diagnostics:")
	assert.Contains(t, res.stdout, "\tentries=0\n")
	assert.Contains(t, res.stdout, "\ttable=metaguard\n")

	res = h.run("destroy")
	require.Equal(t, exitSuccess, res.code, res.stderr)
	assert.Equal(t, "Metadata store is deleted.\n", res.stdout)

	res = h.run("destroy")
	require.Equal(t, exitSuccess, res.code, res.stderr)
	assert.Equal(t, "Metadata Store does not exist.\n", res.stdout)
}

func TestBucketInfo(t *testing.T) {
	h := newHarness(t)

	res := h.run("bucket-info", "s3a://bucket")
	require.Equal(t, exitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Filesystem s3a://bucket\n")
	assert.Contains(t, res.stdout, "Location: eu-west-1\n")
	assert.Contains(t, res.stdout, "is not using a metadata store")
	assert.Contains(t, res.stdout, "Credentials: default chain")
	assert.Contains(t, res.stdout, "Metadata store URI: sqlite://")

	assert.Equal(t, exitBadState, h.run("bucket-info", "--guarded", "s3a://bucket").code)
	assert.Equal(t, exitUsage, h.run("bucket-info", "--guarded", "--unguarded", "s3a://bucket").code)
	assert.Equal(t, exitUsage, h.run("bucket-info").code)

	require.Equal(t, exitSuccess, h.run("init").code)

	res = h.run("bucket-info", "--guarded", "s3a://bucket")
	require.Equal(t, exitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "is using a metadata store")
	assert.Contains(t, res.stdout, "Metadata Store Diagnostics:")

	assert.Equal(t, exitBadState, h.run("bucket-info", "--unguarded", "s3a://bucket").code)
}

func TestUnsupportedStoreScheme(t *testing.T) {
	h := newHarness(t)
	h.meta = "dynamodb://table"

	assert.Equal(t, exitInvalidArgument, h.run("init").code)
}

func TestVersionCommand(t *testing.T) {
	h := newHarness(t)

	res := h.run("version")
	require.Equal(t, exitSuccess, res.code, res.stderr)
	assert.Equal(t, version.Detailed(), strings.TrimSpace(res.stdout))
}

func TestMetricsAndLogFile(t *testing.T) {
	h := newHarness(t)
	h.src.PutFile("/a/b", 1, 1)
	textfile := filepath.Join(h.dir, "metrics", "metaguard.prom")
	logFile := filepath.Join(h.dir, "logs", "metaguard.log")

	res := h.run("import", "--metrics-textfile", textfile, "--log-file", logFile, "--log-level", "debug", "s3a://bucket/")
	require.Equal(t, exitSuccess, res.code, res.stderr)

	data, err := os.ReadFile(textfile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "metaguard_import_entries_total")

	logs, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(logs), "run_id=")
	assert.Contains(t, string(logs), "import")
}

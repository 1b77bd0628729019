package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(diffRecords.WithLabelValues("S3"))
	RecordDiff("S3")
	RecordDiff("S3")
	assert.Equal(t, before+2, testutil.ToFloat64(diffRecords.WithLabelValues("S3")))

	before = testutil.ToFloat64(entriesPruned)
	RecordPruned(0)
	RecordPruned(5)
	assert.Equal(t, before+5, testutil.ToFloat64(entriesPruned))
}

func TestWriteTextfile(t *testing.T) {
	RecordCompared()
	ObserveStoreOp("get", time.Now(), nil)

	path := filepath.Join(t.TempDir(), "metaguard.prom")
	require.NoError(t, WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "metaguard_diff_entries_compared_total")
	assert.Contains(t, string(data), "metaguard_store_operation_duration_seconds")
}

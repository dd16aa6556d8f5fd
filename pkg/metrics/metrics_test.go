package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserve(t *testing.T) {
	errDeclined := errors.New("declined")
	m := New(WithClassifier(func(err error) string {
		if err == errDeclined {
			return OutcomeDeclined
		}
		return OutcomeFailure
	}))

	start := time.Now().Add(-time.Second)
	m.Observe("publish", "acme.example.org", start, nil)
	m.Observe("publish", "acme.example.org", start, errors.New("sync failed"))
	m.Observe("rmfs", "acme.example.org", start, errDeclined)

	assert.Equal(t, 3, testutil.CollectAndCount(m.duration))
	assert.Equal(t, 1, testutil.CollectAndCount(m.lastSuccess))
	assert.InDelta(t, float64(time.Now().Unix()), testutil.ToFloat64(m.lastSuccess.WithLabelValues("publish", "acme.example.org")), 2)

	families, err := m.Gatherer().Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.ElementsMatch(t, []string{"cvmfs_server_operation_duration_seconds", "cvmfs_server_last_success_timestamp_seconds"}, names)

	var nilMetrics *Metrics
	nilMetrics.Observe("publish", "acme.example.org", start, nil)
	require.NoError(t, nilMetrics.Flush())
}

func TestFlush(t *testing.T) {
	require.NoError(t, New().Flush())

	textfile := filepath.Join(t.TempDir(), "cvmfs_server.prom")
	m := New(WithTextfile(textfile), WithNamespace("test"))
	m.Observe("snapshot", "acme.example.org", time.Now(), nil)
	require.NoError(t, m.Flush())

	b, err := os.ReadFile(textfile)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(b), `test_last_success_timestamp_seconds{operation="snapshot",repo="acme.example.org"}`))
	assert.True(t, strings.Contains(string(b), `test_operation_duration_seconds_count{operation="snapshot",outcome="success"} 1`))
}

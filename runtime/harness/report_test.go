package harness

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportRoundTrip(t *testing.T) {
	report := RunReport{
		StartedAt: time.Date(2026, 8, 23, 10, 30, 0, 0, time.UTC),
		Subject:   "/work/wcat/wcat",
		Oracle:    "/usr/bin/cat",
		Filter:    "fifo",
		Results: []CaseResult{
			{Name: "fifo streaming", Outcome: OutcomePass, Duration: 120 * time.Millisecond},
			{Name: "fifo show ends", Outcome: OutcomeFail, Detail: "output mismatch for args [\"-E\"]", Duration: 40 * time.Millisecond},
			{Name: "-T fifo fast path", Outcome: OutcomeTimeout, Detail: "timed out", Duration: 5 * time.Second},
		},
		Elapsed: 6 * time.Second,
	}

	path := filepath.Join(t.TempDir(), "run.cbor")
	require.NoError(t, WriteReport(path, report))

	got, err := ReadReport(path)
	require.NoError(t, err)
	if diff := cmp.Diff(report, got); diff != "" {
		t.Errorf("report changed across round trip (-want +got):\n%s", diff)
	}
}

func TestReadReportMissingFile(t *testing.T) {
	_, err := ReadReport(filepath.Join(t.TempDir(), "absent.cbor"))
	assert.Error(t, err)
}

func TestReadReportCorruptData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.cbor")
	require.NoError(t, os.WriteFile(path, []byte("not cbor at all"), 0o644))

	_, err := ReadReport(path)
	assert.Error(t, err)
}

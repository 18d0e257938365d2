package harness

import (
	"fmt"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// RunReport is the machine-readable record of one suite execution.
// CBOR rather than JSON because case details can embed arbitrary bytes
// rendered from subject output.
type RunReport struct {
	StartedAt time.Time     `cbor:"started_at"`
	Subject   string        `cbor:"subject"`
	Oracle    string        `cbor:"oracle"`
	Filter    string        `cbor:"filter,omitempty"`
	Results   []CaseResult  `cbor:"results"`
	Elapsed   time.Duration `cbor:"elapsed_ns"`
}

// WriteReport marshals report to path.
func WriteReport(path string, report RunReport) error {
	data, err := cbor.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode run report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write run report %s: %w", path, err)
	}
	return nil
}

// ReadReport loads a report previously written by WriteReport.
func ReadReport(path string) (RunReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RunReport{}, fmt.Errorf("read run report %s: %w", path, err)
	}
	var report RunReport
	if err := cbor.Unmarshal(data, &report); err != nil {
		return RunReport{}, fmt.Errorf("decode run report %s: %w", path, err)
	}
	return report, nil
}

package workers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/iago/review-radar-back/internal/domain"
)

// workerFault is the `{"error": "..."}` document a worker prints when it
// catches its own failure. Documents carrying a success flag are left to the
// caller.
type workerFault struct {
	Success *bool  `json:"success"`
	Error   string `json:"error"`
}

func decodeDocument(worker, line string, out any) error {
	raw := []byte(line)
	if !json.Valid(raw) {
		return &domain.WorkerProtocolError{
			Worker:   worker,
			LastLine: tail(line, 200),
			Err:      errors.New("last output line is not a JSON document"),
		}
	}

	if bytes.HasPrefix(raw, []byte("{")) {
		var fault workerFault
		if err := json.Unmarshal(raw, &fault); err == nil && fault.Success == nil && fault.Error != "" {
			return &domain.WorkerExecutionError{Worker: worker, Err: errors.New(fault.Error)}
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &domain.WorkerProtocolError{
			Worker:   worker,
			LastLine: tail(line, 200),
			Err:      fmt.Errorf("decode output: %w", err),
		}
	}
	return nil
}

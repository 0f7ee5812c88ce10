package history

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/mmiles2012/Virgin-AI-OPS-prototype-sub003/internal/models"
)

// Record kinds written to an export.
const (
	KindAnalysis = "analysis"
	KindOutcome  = "outcome"
)

// Record is one line of an export.
type Record struct {
	Kind     string                   `json:"kind"`
	Analysis *models.DecisionAnalysis `json:"analysis,omitempty"`
	Outcome  *models.OutcomeReport    `json:"outcome,omitempty"`
}

// Export streams the whole log to w as zstd-compressed JSON lines, analyses
// first. It returns the number of records written.
func (s *Store) Export(ctx context.Context, w io.Writer) (int, error) {
	enc, err := zstd.NewWriter(w)
	if err != nil {
		return 0, fmt.Errorf("create zstd writer: %w", err)
	}

	count := 0
	jsonEnc := json.NewEncoder(enc)
	write := func(r Record) error {
		if err := jsonEnc.Encode(r); err != nil {
			return fmt.Errorf("write %s record: %w", r.Kind, err)
		}
		count++
		return nil
	}

	err = s.ReplayAnalyses(ctx, func(a *models.DecisionAnalysis) error {
		return write(Record{Kind: KindAnalysis, Analysis: a})
	})
	if err == nil {
		err = s.ReplayOutcomes(ctx, func(o models.OutcomeReport) error {
			return write(Record{Kind: KindOutcome, Outcome: &o})
		})
	}
	if err != nil {
		_ = enc.Close()
		return count, err
	}

	if err := enc.Close(); err != nil {
		return count, fmt.Errorf("flush zstd writer: %w", err)
	}
	return count, nil
}

// ReadExport decodes an export produced by Export and calls fn per record.
func ReadExport(r io.Reader, fn func(Record) error) error {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return fmt.Errorf("create zstd reader: %w", err)
	}
	defer dec.Close()

	scanner := bufio.NewScanner(dec)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return fmt.Errorf("decode record: %w", err)
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read export: %w", err)
	}
	return nil
}

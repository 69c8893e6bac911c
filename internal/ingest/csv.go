package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sakif/usage-dashboard/internal/apperror"
	"github.com/sakif/usage-dashboard/internal/frame"
)

// Source columns of the weekly usage export.
const (
	ColPeriodStart     = "period_start"
	ColModelToMessages = "model_to_messages"
	ColToolToMessages  = "tool_to_messages"
)

var requiredColumns = []string{"email", ColPeriodStart}

// ReadCSV reads a usage export into an all-string frame. Empty cells become
// nulls and short rows are padded with nulls.
func ReadCSV(r io.Reader) (*frame.Frame, error) {
	return readTable(r, requiredColumns)
}

func readTable(r io.Reader, required []string) (*frame.Frame, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, apperror.ValidationFailed("file", "the uploaded file is empty")
	}
	if err != nil {
		return nil, apperror.ValidationFailed("file", fmt.Sprintf("could not read CSV header: %v", err))
	}
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		header[i] = strings.TrimSpace(h)
	}

	f := frame.Strings(header)
	for _, name := range required {
		if !f.Has(name) {
			return nil, apperror.ValidationFailed("file", fmt.Sprintf("missing required column %q", name))
		}
	}

	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperror.ValidationFailed("file", fmt.Sprintf("could not read CSV line %d: %v", line, err))
		}
		row := make([]any, len(header))
		for j := range row {
			if j < len(rec) && rec[j] != "" {
				row[j] = rec[j]
			}
		}
		f.Append(row...)
	}
	return f, nil
}

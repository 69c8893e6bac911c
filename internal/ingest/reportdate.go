package ingest

import (
	"path/filepath"
	"regexp"

	"github.com/sakif/usage-dashboard/internal/apperror"
	"github.com/sakif/usage-dashboard/internal/frame"
	"github.com/sakif/usage-dashboard/internal/model"
)

var filenameDate = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)

// ReportDate determines which week an upload covers: the last YYYY-MM-DD in
// the file's base name, or else the first parseable period_start value.
func ReportDate(filename string, raw *frame.Frame) (model.Date, error) {
	matches := filenameDate.FindAllString(filepath.Base(filename), -1)
	for i := len(matches) - 1; i >= 0; i-- {
		if d, err := model.ParseDate(matches[i]); err == nil {
			return d, nil
		}
	}

	if raw != nil {
		for i := range raw.Rows {
			v := raw.Value(i, ColPeriodStart)
			if v == nil {
				continue
			}
			if d := ParseDate(frame.FormatValue(v)); !d.IsZero() {
				return d, nil
			}
		}
	}
	return model.Date{}, apperror.ValidationFailed("file",
		"could not determine the report date from the file name or its period_start column")
}

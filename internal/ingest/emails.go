package ingest

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/samber/lo"
)

// ReadEmails reads an allow-list CSV with an "email" column. Addresses are
// trimmed and lower-cased; blanks and repeats are dropped.
func ReadEmails(r io.Reader) ([]string, error) {
	f, err := readTable(r, []string{"email"})
	if err != nil {
		return nil, err
	}
	idx := f.Index("email")
	emails := lo.FilterMap(f.Rows, func(row []any, _ int) (string, bool) {
		s, _ := row[idx].(string)
		s = strings.ToLower(strings.TrimSpace(s))
		return s, s != ""
	})
	return lo.Uniq(emails), nil
}

// LoadEmails reads the allow-list at path.
func LoadEmails(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening email list: %w", err)
	}
	defer file.Close()
	emails, err := ReadEmails(file)
	if err != nil {
		return nil, fmt.Errorf("reading email list %s: %w", path, err)
	}
	return emails, nil
}

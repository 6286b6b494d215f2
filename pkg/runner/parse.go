package runner

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/relialab/checkrun/pkg/resource"
)

// ErrMalformedRecordLine is returned when resource output contains a line
// that is neither "key: value", a comment, nor a record separator.
var ErrMalformedRecordLine = errors.New("malformed resource record line")

// ParseRecords reads resource job stdout into records.
//
// The format is the one resource commands emit: one "key: value" field per
// line, records separated by blank lines, lines starting with '#' ignored.
//
//	name: sda
//	removable: no
//
//	name: sdb
//	removable: yes
//
// Later fields with a repeated key overwrite earlier ones within the same
// record. A line without a colon fails parsing with its line number.
func ParseRecords(r io.Reader) ([]resource.Record, error) {
	var (
		records []resource.Record
		current resource.Record
	)

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		if trimmed == "" {
			if len(current) > 0 {
				records = append(records, current)
				current = nil
			}
			continue
		}
		if strings.HasPrefix(trimmed, "#") {
			continue
		}

		key, value, ok := strings.Cut(trimmed, ":")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("line %d: %w: %q", lineNo, ErrMalformedRecordLine, line)
		}
		if current == nil {
			current = resource.Record{}
		}
		current[key] = strings.TrimSpace(value)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read resource output: %w", err)
	}
	if len(current) > 0 {
		records = append(records, current)
	}
	return records, nil
}

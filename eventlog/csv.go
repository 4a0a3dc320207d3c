package eventlog

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// WriteCSV writes events as CSV with a header row. The marking is encoded
// as semicolon-separated place=count pairs in place-name order.
func WriteCSV(w io.Writer, events []FiringEvent) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"run_id", "seq", "transition", "timestamp", "marking"}); err != nil {
		return fmt.Errorf("write CSV header: %w", err)
	}
	for _, ev := range events {
		record := []string{
			ev.RunID,
			strconv.Itoa(ev.Seq),
			ev.Transition,
			ev.Timestamp.Format(time.RFC3339Nano),
			encodeMarking(ev.Marking),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write CSV record: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses events written by WriteCSV.
func ReadCSV(r io.Reader) ([]FiringEvent, error) {
	cr := csv.NewReader(r)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	events := make([]FiringEvent, 0, len(records)-1)
	for i, record := range records[1:] {
		if len(record) != 5 {
			return nil, fmt.Errorf("CSV record %d: expected 5 fields, got %d", i+1, len(record))
		}
		seq, err := strconv.Atoi(record[1])
		if err != nil {
			return nil, fmt.Errorf("CSV record %d: seq: %w", i+1, err)
		}
		ts, err := time.Parse(time.RFC3339Nano, record[3])
		if err != nil {
			return nil, fmt.Errorf("CSV record %d: timestamp: %w", i+1, err)
		}
		marking, err := decodeMarking(record[4])
		if err != nil {
			return nil, fmt.Errorf("CSV record %d: marking: %w", i+1, err)
		}
		events = append(events, FiringEvent{
			RunID:      record[0],
			Seq:        seq,
			Transition: record[2],
			Timestamp:  ts,
			Marking:    marking,
		})
	}
	return events, nil
}

func encodeMarking(marking map[string]uint64) string {
	var sb strings.Builder
	for i, name := range markingPlaces(marking) {
		if i > 0 {
			sb.WriteByte(';')
		}
		sb.WriteString(name)
		sb.WriteByte('=')
		sb.WriteString(strconv.FormatUint(marking[name], 10))
	}
	return sb.String()
}

func decodeMarking(s string) (map[string]uint64, error) {
	marking := make(map[string]uint64)
	if s == "" {
		return marking, nil
	}
	for _, pair := range strings.Split(s, ";") {
		name, count, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("malformed pair %q", pair)
		}
		n, err := strconv.ParseUint(count, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed count in %q: %w", pair, err)
		}
		marking[name] = n
	}
	return marking, nil
}

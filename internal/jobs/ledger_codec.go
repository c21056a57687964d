package jobs

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"vipbot/internal/models"
)

// reportLine matches the "<id> — <n> days left" lines of the text report so a
// pasted report can be imported back.
var reportLine = regexp.MustCompile(`^(\S+)\s+[—-]\s+(\d+)\s+days?\s+left$`)

// structuredRecord is one element of an array-shaped import payload.
type structuredRecord struct {
	SubscriberID string          `json:"subscriber_id"`
	ID           string          `json:"id"`
	ExpiresAt    string          `json:"expires_at"`
	Days         json.RawMessage `json:"days"`
}

// ParseImportPayload accepts a JSON object (legacy flat map or the versioned
// ledger document), a JSON array of records, or "id:days" / "id:timestamp" lines.
// Entries that cannot even be split into id and value are reported in errs;
// value validation is left to the subscription service.
func ParseImportPayload(payload []byte) (entries []models.ImportEntry, errs []string) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, []string{"payload is empty"}
	}

	switch trimmed[0] {
	case '{':
		return parseObject(trimmed)
	case '[':
		return parseArray(trimmed)
	default:
		return parseLines(trimmed)
	}
}

func parseObject(data []byte) ([]models.ImportEntry, []string) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, []string{fmt.Sprintf("invalid JSON: %v", err)}
	}

	if _, versioned := raw["version"]; versioned {
		subs := raw["subscribers"]
		raw = nil
		if len(subs) > 0 {
			if err := json.Unmarshal(subs, &raw); err != nil {
				return nil, []string{fmt.Sprintf("invalid subscribers section: %v", err)}
			}
		}
	}

	var entries []models.ImportEntry
	var errs []string
	for id, value := range raw {
		v, err := scalarValue(value)
		if err != nil {
			errs = append(errs, fmt.Sprintf("entry %q: %v", id, err))
			continue
		}
		entries = append(entries, models.ImportEntry{SubscriberID: id, Value: v})
	}
	return entries, errs
}

func parseArray(data []byte) ([]models.ImportEntry, []string) {
	var records []structuredRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, []string{fmt.Sprintf("invalid JSON: %v", err)}
	}

	var entries []models.ImportEntry
	var errs []string
	for i, rec := range records {
		id := rec.SubscriberID
		if id == "" {
			id = rec.ID
		}
		value := rec.ExpiresAt
		if value == "" && len(rec.Days) > 0 {
			v, err := scalarValue(rec.Days)
			if err != nil {
				errs = append(errs, fmt.Sprintf("record %d: %v", i+1, err))
				continue
			}
			value = v
		}
		if id == "" || value == "" {
			errs = append(errs, fmt.Sprintf("record %d: needs an id and either expires_at or days", i+1))
			continue
		}
		entries = append(entries, models.ImportEntry{SubscriberID: id, Value: value})
	}
	return entries, errs
}

func parseLines(data []byte) ([]models.ImportEntry, []string) {
	var entries []models.ImportEntry
	var errs []string

	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if m := reportLine.FindStringSubmatch(line); m != nil {
			entries = append(entries, models.ImportEntry{SubscriberID: m[1], Value: liveDays(m[2])})
			continue
		}

		id, value, ok := strings.Cut(line, ":")
		if !ok {
			errs = append(errs, fmt.Sprintf("line %d: expected <id>:<days>", lineNo))
			continue
		}
		entries = append(entries, models.ImportEntry{
			SubscriberID: strings.TrimSpace(id),
			Value:        strings.TrimSpace(value),
		})
	}
	if err := scanner.Err(); err != nil {
		errs = append(errs, fmt.Sprintf("read payload: %v", err))
	}
	return entries, errs
}

// scalarValue turns a JSON string or integer into the raw import value.
func scalarValue(value json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(value, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(value, &n); err == nil {
		if _, err := strconv.Atoi(n.String()); err != nil {
			return "", fmt.Errorf("days must be a whole number, got %s", n.String())
		}
		return n.String(), nil
	}
	return "", fmt.Errorf("value must be a day count or a timestamp")
}

// liveDays maps the "0 days left" of a report line to one day. Every record in a
// report is still active, it just has less than a day to go.
func liveDays(days string) string {
	if n, err := strconv.Atoi(days); err == nil && n == 0 {
		return "1"
	}
	return days
}

// FormatLines renders the ledger as "id:days" lines. A record with less than a
// day left is written as 1 so that it survives a re-import.
func FormatLines(statuses []models.SubscriberStatus) string {
	var b strings.Builder
	for _, st := range statuses {
		fmt.Fprintf(&b, "%s:%d\n", st.SubscriberID, max(1, st.DaysRemaining))
	}
	return b.String()
}

// FormatReport renders the ledger as a human readable list.
func FormatReport(statuses []models.SubscriberStatus) string {
	if len(statuses) == 0 {
		return "No VIPs found."
	}
	lines := make([]string, 0, len(statuses))
	for _, st := range statuses {
		lines = append(lines, fmt.Sprintf("%s — %d days left", st.SubscriberID, st.DaysRemaining))
	}
	return strings.Join(lines, "\n")
}

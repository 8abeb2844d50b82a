// Package encoder serializes unified records into the line-oriented wire
// format consumed by the downstream metrics pipeline.
package encoder

import (
	"io"
	"sort"
	"strconv"
	"strings"

	"codeberg.org/mutker/nexmon/internal/errors"
	"codeberg.org/mutker/nexmon/internal/telemetry"
	jsoniter "github.com/json-iterator/go"
)

// Format selects the output encoding.
type Format string

const (
	FormatLineProtocol Format = "influxdb-lp"
	FormatDict         Format = "dict"
)

// IsValid returns whether the output format is supported.
func (f Format) IsValid() bool {
	return f == FormatLineProtocol || f == FormatDict
}

// Encoder writes unified records to an output stream.
type Encoder interface {
	Encode(records []telemetry.UnifiedRecord) error
}

// New returns the encoder for the requested format.
func New(format Format, w io.Writer) (Encoder, error) {
	switch format {
	case FormatLineProtocol:
		return &lineProtocol{w: w}, nil
	case FormatDict:
		return &dict{w: w}, nil
	default:
		return nil, errors.New().WithData(ErrUnknownFormat, string(format))
	}
}

type lineProtocol struct {
	w io.Writer
}

// Encode writes one line per record: measurement, sorted escaped tags, typed
// fields and a nanosecond timestamp. Records without fields are skipped since
// a line without fields is not valid in the protocol.
func (e *lineProtocol) Encode(records []telemetry.UnifiedRecord) error {
	errFactory := errors.New()
	var b strings.Builder

	for _, rec := range records {
		if len(rec.Fields) == 0 {
			continue
		}

		b.Reset()
		b.WriteString(escapeMeasurement(rec.Measurement))

		for _, key := range sortedKeys(rec.Tags) {
			value := rec.Tags[key]
			if value == "" {
				continue
			}
			b.WriteByte(',')
			b.WriteString(escapeTag(key))
			b.WriteByte('=')
			b.WriteString(escapeTag(value))
		}

		b.WriteByte(' ')
		for i, key := range sortedFieldKeys(rec.Fields) {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(escapeTag(key))
			b.WriteByte('=')
			b.WriteString(fieldValue(rec.Fields[key]))
		}

		if !rec.Time.IsZero() {
			b.WriteByte(' ')
			b.WriteString(strconv.FormatInt(rec.Time.UnixNano(), 10))
		}
		b.WriteByte('\n')

		if _, err := io.WriteString(e.w, b.String()); err != nil {
			return errFactory.Wrap(ErrWriteFailed, err)
		}
	}

	return nil
}

// escapeTag escapes the characters that break tag keys, tag values and field
// keys: commas, equals signs and spaces.
func escapeTag(s string) string {
	s = strings.ReplaceAll(s, ",", `\,`)
	s = strings.ReplaceAll(s, "=", `\=`)
	s = strings.ReplaceAll(s, " ", `\ `)

	return s
}

// escapeMeasurement escapes commas and spaces; equals signs are legal in
// measurement names.
func escapeMeasurement(s string) string {
	s = strings.ReplaceAll(s, ",", `\,`)
	s = strings.ReplaceAll(s, " ", `\ `)

	return s
}

// fieldValue renders a field with its protocol type: integers get the i
// suffix, strings are double-quoted with inner quotes and backslashes
// escaped, booleans and floats are bare.
func fieldValue(v any) string {
	switch val := v.(type) {
	case string:
		escaped := strings.ReplaceAll(val, `\`, `\\`)
		escaped = strings.ReplaceAll(escaped, `"`, `\"`)
		return `"` + escaped + `"`
	case bool:
		return strconv.FormatBool(val)
	case int64:
		return strconv.FormatInt(val, 10) + "i"
	case int:
		return strconv.Itoa(val) + "i"
	case uint64:
		return strconv.FormatUint(val, 10) + "i"
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return "0"
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return keys
}

func sortedFieldKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return keys
}

type dict struct {
	w io.Writer
}

// Encode dumps the correlated record set as indented JSON. Used for
// inspecting what would be written without a downstream pipeline.
func (e *dict) Encode(records []telemetry.UnifiedRecord) error {
	data, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(records, "", "  ")
	if err != nil {
		return errors.New().Wrap(ErrWriteFailed, err)
	}
	data = append(data, '\n')

	if _, err := e.w.Write(data); err != nil {
		return errors.New().Wrap(ErrWriteFailed, err)
	}

	return nil
}

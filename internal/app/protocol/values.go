package protocol

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// ID is an identifier the server may send as a JSON string or number.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*id = ""
		return nil
	}

	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// Magnitude bands for numeric timestamps. A unix second count reaches 1e11 only
// after year 5000, so larger values are read as finer units.
const (
	msThreshold = 1e11
	usThreshold = 1e14
	nsThreshold = 1e17
)

// timestampLayouts are tried in order for string timestamps that are not numeric.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
}

// Timestamp accepts RFC 3339 and "YYYY-MM-DD hh:mm:ss" strings (UTC when no zone is
// given) and unix seconds, milliseconds, microseconds or nanoseconds, either as JSON
// numbers or numeric strings. A value it cannot read leaves the zero time instead of
// failing the frame.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	t.Time = time.Time{}

	raw := strings.TrimSpace(string(b))
	if raw == "" || raw == "null" {
		return nil
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
		raw = strings.TrimSpace(s)
		if raw == "" {
			return nil
		}
		for _, layout := range timestampLayouts {
			if parsed, err := time.Parse(layout, raw); err == nil {
				t.Time = parsed
				return nil
			}
		}
	}

	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		t.Time = fromUnix(n)
		return nil
	}

	if f, err := strconv.ParseFloat(raw, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
		if math.Abs(f) >= msThreshold {
			t.Time = fromUnix(int64(f))
		} else {
			sec, frac := math.Modf(f)
			t.Time = time.Unix(int64(sec), int64(frac*1e9))
		}
	}
	return nil
}

// fromUnix reads n in the unit its magnitude implies.
func fromUnix(n int64) time.Time {
	abs := n
	if abs < 0 {
		abs = -abs
	}

	switch {
	case abs >= nsThreshold:
		return time.Unix(0, n)
	case abs >= usThreshold:
		return time.UnixMicro(n)
	case abs >= msThreshold:
		return time.UnixMilli(n)
	default:
		return time.Unix(n, 0)
	}
}

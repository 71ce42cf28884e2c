// Package convert turns naive instants into UTC epochs and Discord time
// tags for a given source timezone.
package convert

import (
	"fmt"
	"strings"
	"time"
)

// Display style codes understood by Discord's client-side renderer.
const (
	StyleShortTime = "t"
	StyleFull      = "F"
)

// Result is one converted instant.
type Result struct {
	UTC   time.Time
	Epoch int64
	Tag   string
}

// Render reinterprets each naive instant as wall-clock time in zone,
// converts it to UTC, and renders a time tag per instant. Output order
// matches input order. An unknown zone is an error for the record that
// carried it; no fallback zone is guessed.
func Render(instants []time.Time, zone, style string) ([]Result, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", zone, err)
	}

	out := make([]Result, 0, len(instants))
	for _, t := range instants {
		// Sub-second precision is dropped here: the epoch is whole
		// seconds since 1970-01-01T00:00:00Z.
		local := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc)
		utc := local.UTC()
		epoch := utc.Unix()
		out = append(out, Result{
			UTC:   utc,
			Epoch: epoch,
			Tag:   fmt.Sprintf("<t:%d:%s>", epoch, style),
		})
	}
	return out, nil
}

// ReplyText joins rendered tags into the bot's reply line.
func ReplyText(results []Result) string {
	tags := make([]string, len(results))
	for i, r := range results {
		tags[i] = r.Tag
	}
	return "That's " + strings.Join(tags, ", ") + " auto-converted to local time."
}

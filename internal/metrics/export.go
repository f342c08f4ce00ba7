package metrics

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/itchyny/gojq"
)

// Report is the exported view of a collector.
type Report struct {
	GeneratedAt time.Time       `json:"generated_at"`
	Totals      Totals          `json:"totals"`
	Models      []ModelSnapshot `json:"models"`
}

// Report returns the collector's current counters.
func (c *Collector) Report() Report {
	return Report{
		GeneratedAt: time.Now(),
		Totals:      c.Totals(),
		Models:      c.Snapshot(),
	}
}

// WriteJSON writes c.Report() as indented JSON.
func (c *Collector) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(c.Report())
}

// WriteQuery runs a jq query over the report and writes each result as
// indented JSON. String results are written raw.
func (c *Collector) WriteQuery(w io.Writer, query string) error {
	parsed, err := gojq.Parse(query)
	if err != nil {
		return fmt.Errorf("invalid jq query: %w", err)
	}

	// gojq only walks plain JSON values.
	data, err := json.Marshal(c.Report())
	if err != nil {
		return err
	}
	var input interface{}
	if err := json.Unmarshal(data, &input); err != nil {
		return err
	}

	iter := parsed.Run(input)
	for {
		v, ok := iter.Next()
		if !ok {
			return nil
		}
		if err, isErr := v.(error); isErr {
			return fmt.Errorf("jq error: %w", err)
		}
		if s, isStr := v.(string); isStr {
			fmt.Fprintln(w, s)
			continue
		}
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		fmt.Fprintln(w, string(b))
	}
}

package somctl

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

// print writes v as JSON or YAML, or calls text for the human format.
func (c *simpleCLIClient) print(v interface{}, text func(w io.Writer)) error {
	switch c.output {
	case outputJSON:
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case outputYAML:
		// round trip through JSON so field names match the API
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		var generic interface{}
		if err := yaml.Unmarshal(b, &generic); err != nil {
			return err
		}
		enc := yaml.NewEncoder(c.out)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return err
		}
		return enc.Close()
	case outputText, "":
		tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
		text(tw)
		return tw.Flush()
	}
	return errors.Errorf("unknown output format %q", c.output)
}

func formatProgress(p float64) string {
	if p < 0 {
		return "-"
	}
	return fmt.Sprintf("%.0f%%", p*100)
}

func formatETA(minutes float64) string {
	if minutes < 0 {
		return "unknown"
	}
	return fmt.Sprintf("%.1f min", minutes)
}

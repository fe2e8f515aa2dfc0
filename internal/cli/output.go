package cli

import (
	"encoding/json"
	"fmt"
	"io"
)

// textable is implemented by output shapes that have a text rendering.
type textable interface {
	text() string
}

// writeOutput renders an output shape as text or indented JSON.
func writeOutput(w io.Writer, format string, v textable) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	default:
		_, err := fmt.Fprint(w, v.text())
		return err
	}
}

package output

import (
	"encoding/json"
	"io"
)

// JSONFormatter prints indented JSON. HTML characters in payload values
// are written as-is.
type JSONFormatter struct{}

func (*JSONFormatter) Format(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// Package format renders a result.Summary into one of the external report
// shapes from spec.md §6.3: text, markdown, json, xml (JUnit), html.
package format

import (
	"fmt"
	"io"

	"github.com/restyrun/resty/internal/result"
)

// Formatter renders a completed Summary to w.
type Formatter interface {
	Format(w io.Writer, summary result.Summary) error
}

// ByName resolves one of the --output names to its Formatter, matching
// spec.md §6.2's accepted values.
func ByName(name string) (Formatter, error) {
	switch name {
	case "", "text":
		return TextFormatter{}, nil
	case "markdown", "md":
		return MarkdownFormatter{}, nil
	case "json":
		return JSONFormatter{}, nil
	case "xml", "junit":
		return JUnitFormatter{}, nil
	case "html":
		return HTMLFormatter{}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q", name)
	}
}

// Package scaffold implements the `resty init`, `resty import postman`, and
// `resty generate openapi` commands: interactive project bootstrapping and
// test-file generation from existing API descriptions.
package scaffold

import (
	"fmt"
	"os"
	"strings"

	postman "github.com/rbretecher/go-postman-collection"
)

// ImportPostman reads a Postman Collection v2.x file and writes a single
// generated .resty file under outDir, with each folder rendered as a
// Markdown heading above its requests' test blocks.
func ImportPostman(collectionPath, outDir string) ([]string, error) {
	f, err := os.Open(collectionPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open postman collection: %w", err)
	}
	defer f.Close()

	collection, err := postman.ParseCollection(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postman collection: %w", err)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("# %s\n\nImported from a Postman collection.\n\n", collection.Info.Name))
	writePostmanItems(&b, collection.Items)

	name := slugify(collection.Info.Name)
	if name == "" {
		name = "imported"
	}
	path := outDir + "/" + name + ".resty"
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return nil, err
	}
	return []string{path}, nil
}

func writePostmanItems(b *strings.Builder, items []*postman.Items) {
	for _, item := range items {
		if item.IsGroup() {
			fmt.Fprintf(b, "## %s\n\n", item.Name)
			writePostmanItems(b, item.Items)
			continue
		}
		if item.Request == nil {
			continue
		}
		writePostmanRequest(b, item.Name, item.Request)
	}
}

func writePostmanRequest(b *strings.Builder, name string, req *postman.Request) {
	method := strings.ToLower(string(req.Method))
	url := ""
	if req.URL != nil {
		url = req.URL.Raw
	}

	fmt.Fprintf(b, "```yaml\n")
	fmt.Fprintf(b, "test: %s\n", name)
	fmt.Fprintf(b, "%s: %s\n", method, url)

	if len(req.Header) > 0 {
		fmt.Fprintf(b, "headers:\n")
		for _, h := range req.Header {
			fmt.Fprintf(b, "  %s: %q\n", strings.ToLower(h.Key), h.Value)
		}
	}

	if req.Body != nil {
		fmt.Fprintf(b, "body: {}\n")
	}

	fmt.Fprintf(b, "expect:\n  status: 200\n")
	fmt.Fprintf(b, "```\n\n")
}

func slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	lastDash := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

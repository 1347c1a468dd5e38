package scaffold

import (
	"fmt"
	"os"
	"strings"

	"github.com/pb33f/libopenapi"
	v3 "github.com/pb33f/libopenapi/datamodel/high/v3"
)

// GenerateOpenAPI reads an OpenAPI v3 document and writes a single .resty
// file containing one test block per operation, with the host taken from
// the document's first server entry (falling back to a $host variable).
func GenerateOpenAPI(specPath, outDir string) (string, error) {
	content, err := os.ReadFile(specPath)
	if err != nil {
		return "", fmt.Errorf("failed to read openapi document: %w", err)
	}

	document, err := libopenapi.NewDocument(content)
	if err != nil {
		return "", fmt.Errorf("failed to parse openapi document: %w", err)
	}

	model, err := document.BuildV3Model()
	if err != nil {
		return "", fmt.Errorf("failed to build openapi v3 model: %w", err)
	}

	host := "$host"
	if len(model.Model.Servers) > 0 {
		host = model.Model.Servers[0].URL
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", err
	}

	title := "generated-api"
	if model.Model.Info != nil && model.Model.Info.Title != "" {
		title = model.Model.Info.Title
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\nGenerated from an OpenAPI document.\n\n", title)
	fmt.Fprintf(&b, "```yaml\nconfig: true\nvariables:\n  host: %q\n```\n\n", host)

	for pair := model.Model.Paths.PathItems.First(); pair != nil; pair = pair.Next() {
		path := pair.Key()
		item := pair.Value()
		writePathOperations(&b, path, item)
	}

	name := slugify(title)
	if name == "" {
		name = "generated"
	}
	out := outDir + "/" + name + ".resty"
	if err := os.WriteFile(out, []byte(b.String()), 0o644); err != nil {
		return "", err
	}
	return out, nil
}

func writePathOperations(b *strings.Builder, path string, item *v3.PathItem) {
	ops := map[string]*v3.Operation{
		"GET":    item.Get,
		"POST":   item.Post,
		"PUT":    item.Put,
		"DELETE": item.Delete,
		"PATCH":  item.Patch,
	}

	for _, method := range []string{"GET", "POST", "PUT", "DELETE", "PATCH"} {
		op := ops[method]
		if op == nil {
			continue
		}

		name := op.OperationId
		if name == "" {
			name = strings.ToLower(method) + " " + path
		}

		fmt.Fprintf(b, "```yaml\n")
		fmt.Fprintf(b, "test: %s\n", name)
		if op.Summary != "" {
			fmt.Fprintf(b, "# %s\n", op.Summary)
		}
		fmt.Fprintf(b, "%s: \"$host%s\"\n", strings.ToLower(method), path)
		if op.RequestBody != nil {
			fmt.Fprintf(b, "body: {}\n")
		}
		fmt.Fprintf(b, "expect:\n  status: 200\n")
		fmt.Fprintf(b, "```\n\n")
	}
}

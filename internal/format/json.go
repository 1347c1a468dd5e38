package format

import (
	"encoding/json"
	"io"
	"time"

	"github.com/restyrun/resty/internal/result"
	"github.com/restyrun/resty/internal/suite"
)

// JSONFormatter emits the machine-readable shape from spec.md §6.3: camelCase
// keys, a flat `results` array, `files`-grouped results, a `summary`/totals
// block, and a `metadata` block.
type JSONFormatter struct{}

type jsonReport struct {
	Results  []jsonResult    `json:"results"`
	Files    []jsonFileSuite `json:"files"`
	Summary  jsonSummary     `json:"summary"`
	Metadata jsonMetadata    `json:"metadata"`
}

type jsonFileSuite struct {
	Path    string       `json:"path"`
	Results []jsonResult `json:"results"`
}

type jsonResult struct {
	File        string            `json:"file"`
	Name        string            `json:"name"`
	Status      string            `json:"status"`
	DurationMs  int64             `json:"durationMs"`
	StatusCode  int               `json:"statusCode,omitempty"`
	Error       string            `json:"error,omitempty"`
	Attempts    int               `json:"attempts,omitempty"`
	Extracted   map[string]string `json:"extracted,omitempty"`
	RequestURL  string            `json:"requestUrl,omitempty"`
	RequestVerb string            `json:"requestMethod,omitempty"`
}

type jsonSummary struct {
	Total    int     `json:"total"`
	Passed   int     `json:"passed"`
	Failed   int     `json:"failed"`
	Skipped  int     `json:"skipped"`
	PassRate float64 `json:"passRate"`
}

// jsonMetadata carries run provenance that isn't part of any single test's
// result, per SPEC_FULL.md's DISCOVERY/FORMATTERS contract.
type jsonMetadata struct {
	Version     string `json:"version"`
	GeneratedAt string `json:"generatedAt"`
}

func (JSONFormatter) Format(w io.Writer, summary result.Summary) error {
	report := jsonReport{
		Metadata: jsonMetadata{
			Version:     suite.Version,
			GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		},
	}
	for _, fs := range summary.Files {
		jfs := jsonFileSuite{Path: fs.Path}
		for _, r := range fs.Results {
			jr := jsonResult{
				File:        fs.Path,
				Name:        r.Name,
				Status:      string(r.Status),
				DurationMs:  r.Duration().Milliseconds(),
				StatusCode:  r.StatusCode,
				Error:       r.Error,
				Attempts:    r.Attempts,
				Extracted:   r.Extracted,
				RequestURL:  r.Request.URL,
				RequestVerb: r.Request.Method,
			}
			jfs.Results = append(jfs.Results, jr)
			report.Results = append(report.Results, jr)
		}
		report.Files = append(report.Files, jfs)
	}

	totals := summary.Totals()
	report.Summary = jsonSummary{
		Total: totals.Total, Passed: totals.Passed, Failed: totals.Failed,
		Skipped: totals.Skipped, PassRate: totals.PassRate(),
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

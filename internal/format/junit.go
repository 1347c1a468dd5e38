package format

import (
	"encoding/xml"
	"io"

	"github.com/restyrun/resty/internal/result"
)

// JUnitFormatter emits the JUnit XML schema referenced by spec.md §6.3 for
// --output xml, so CI systems that already parse JUnit reports (most do)
// need no new integration.
type JUnitFormatter struct{}

type junitTestSuites struct {
	XMLName xml.Name         `xml:"testsuites"`
	Suites  []junitTestSuite `xml:"testsuite"`
}

type junitTestSuite struct {
	Name     string          `xml:"name,attr"`
	Tests    int             `xml:"tests,attr"`
	Failures int             `xml:"failures,attr"`
	Skipped  int             `xml:"skipped,attr"`
	TimeSecs float64         `xml:"time,attr"`
	Cases    []junitTestCase `xml:"testcase"`
}

type junitTestCase struct {
	Name     string        `xml:"name,attr"`
	TimeSecs float64       `xml:"time,attr"`
	Failure  *junitFailure `xml:"failure,omitempty"`
	Skipped  *junitSkipped `xml:"skipped,omitempty"`
}

type junitFailure struct {
	Message string `xml:"message,attr"`
	Text    string `xml:",chardata"`
}

type junitSkipped struct{}

func (JUnitFormatter) Format(w io.Writer, summary result.Summary) error {
	doc := junitTestSuites{}
	for _, fs := range summary.Files {
		suite := junitTestSuite{Name: fs.Path}
		var suiteTime float64
		for _, r := range fs.Results {
			secs := r.Duration().Seconds()
			suiteTime += secs
			tc := junitTestCase{Name: r.Name, TimeSecs: secs}
			switch r.Status {
			case result.Failed:
				suite.Failures++
				tc.Failure = &junitFailure{Message: r.Error, Text: r.Error}
			case result.Skipped:
				suite.Skipped++
				tc.Skipped = &junitSkipped{}
			}
			suite.Cases = append(suite.Cases, tc)
		}
		suite.Tests = len(fs.Results)
		suite.TimeSecs = suiteTime
		doc.Suites = append(doc.Suites, suite)
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	return enc.Encode(doc)
}

package block

import (
	"strconv"
	"strings"

	"github.com/restyrun/resty/internal/rerr"
)

// rawBlock is a fenced YAML section before decoding, paired with its
// 1-based start line (the line of the opening fence).
type rawBlock struct {
	line int
	text string
}

// Scan walks Markdown text line by line, collecting the content of every
// ```yaml ... ``` fence. The fence markers must match exactly after
// trimming whitespace; any other fenced block (``` go, ```json, a bare ```)
// is ignored. An opening fence with no matching close is reported as
// UnclosedBlock, carrying its start line. Empty YAML bodies are skipped.
func Scan(text string) ([]rawBlock, error) {
	lines := strings.Split(text, "\n")
	var blocks []rawBlock

	i := 0
	for i < len(lines) {
		if strings.TrimSpace(strings.TrimRight(lines[i], "\r")) != "```yaml" {
			i++
			continue
		}
		startLine := i + 1
		i++

		var content []string
		closed := false
		for i < len(lines) {
			cur := strings.TrimRight(lines[i], "\r")
			if strings.TrimSpace(cur) == "```" {
				closed = true
				i++
				break
			}
			content = append(content, cur)
			i++
		}
		if !closed {
			return nil, rerr.New(rerr.KindUnclosedBlock,
				"unclosed ```yaml block starting at line "+strconv.Itoa(startLine))
		}

		text := strings.Join(content, "\n")
		if strings.TrimSpace(text) == "" {
			continue
		}
		blocks = append(blocks, rawBlock{line: startLine, text: text})
	}
	return blocks, nil
}

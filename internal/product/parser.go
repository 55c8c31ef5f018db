package product

import (
	"log"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

const (
	// maxRawLen caps free-text input before any JSON parsing is attempted.
	maxRawLen = 500_000
	// maxRecords caps how many elements of an array payload are considered.
	maxRecords = 5
)

var fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// Parse converts a raw analysis webhook payload into a non-empty list of
// records. The payload may be a JSON object, an array, a JSON-encoded
// string, or free text containing one or more fenced ```json blocks
// (the workflow envelope puts those in a "result" field). Parse never
// fails: when nothing usable is found it returns a single placeholder.
func Parse(payload []byte) []Analysis {
	records := parse(payload)
	if len(records) == 0 {
		return []Analysis{Placeholder()}
	}
	return records
}

func parse(payload []byte) []Analysis {
	trimmed := strings.TrimSpace(string(payload))
	if trimmed == "" {
		return nil
	}
	if len(trimmed) > maxRawLen {
		trimmed = trimmed[:maxRawLen]
	}

	if gjson.Valid(trimmed) {
		root := gjson.Parse(trimmed)

		// Workflow envelope: {"result": "...fenced json...", "status": "completed"}.
		if isEnvelope(root) {
			if records := parseEnvelope(root); len(records) > 0 {
				return records
			}
		}

		if root.IsArray() {
			return parseArray(root)
		}
		if root.IsObject() {
			if record, ok := Normalize(root); ok {
				return []Analysis{record}
			}
			return nil
		}
		if root.Type == gjson.String {
			// Stringified JSON one level down; recurse on the inner text.
			return parse([]byte(root.String()))
		}
		return nil
	}

	// Free text: fenced blocks are the only recoverable structure.
	return parseFencedBlocks(trimmed)
}

func isEnvelope(root gjson.Result) bool {
	if !root.IsObject() {
		return false
	}
	return root.Get("result").Exists() || root.Get("status").String() == "completed"
}

func parseEnvelope(root gjson.Result) []Analysis {
	result := root.Get("result")
	if !result.Exists() {
		return nil
	}
	if result.IsObject() || result.IsArray() {
		return parse([]byte(result.Raw))
	}
	return parseFencedBlocks(result.String())
}

// parseFencedBlocks extracts every ```json block and parses each
// independently, so one malformed block does not abort the batch. Text
// without fences is tried as bare JSON last.
func parseFencedBlocks(text string) []Analysis {
	matches := fencedJSON.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		bare := strings.TrimSpace(text)
		if gjson.Valid(bare) && bare != "" && (bare[0] == '{' || bare[0] == '[') {
			return parse([]byte(bare))
		}
		return nil
	}

	records := make([]Analysis, 0, len(matches))
	for _, match := range matches {
		block := strings.TrimSpace(match[1])
		if block == "" {
			continue
		}
		if !gjson.Valid(block) {
			log.Printf("product: skipping malformed fenced block (%d bytes)", len(block))
			continue
		}
		parsed := gjson.Parse(block)
		if parsed.IsArray() {
			records = append(records, parseArray(parsed)...)
			continue
		}
		if record, ok := Normalize(parsed); ok {
			records = append(records, record)
		}
	}
	return dedupe(records)
}

func parseArray(arr gjson.Result) []Analysis {
	records := make([]Analysis, 0, maxRecords)
	arr.ForEach(func(_, item gjson.Result) bool {
		if len(records) >= maxRecords {
			return false
		}
		record, ok := Normalize(item)
		if !ok {
			log.Printf("product: skipping unparseable array element")
			return true
		}
		records = append(records, record)
		return true
	})
	return dedupe(records)
}

func dedupe(records []Analysis) []Analysis {
	if len(records) < 2 {
		return records
	}
	seen := make(map[string]struct{}, len(records))
	out := records[:0]
	for _, record := range records {
		key := record.DedupKey()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, record)
	}
	if len(out) > maxRecords {
		out = out[:maxRecords]
	}
	return out
}

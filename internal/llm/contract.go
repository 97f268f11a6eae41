package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/dgallion1/narrator/internal/fault"
)

// Contract is how a backend must shape its reply. It is either
// FreeTextEnveloped or StructuredSchema.
type Contract interface {
	contractKind() string
}

// FreeTextEnveloped asks for free text between two tags. The opening tag is
// prefilled as the start of the assistant turn and the closing tag is a
// stop sequence.
type FreeTextEnveloped struct {
	Open  string
	Close string
}

func (FreeTextEnveloped) contractKind() string { return "envelope" }

// StructuredSchema asks for a JSON object that validates against Schema and
// carries the required Field.
type StructuredSchema struct {
	Name   string
	Field  string
	Schema map[string]any
}

func (StructuredSchema) contractKind() string { return "structured" }

// ContractKind names a contract for logs and configuration.
func ContractKind(c Contract) string {
	if c == nil {
		return ""
	}
	return c.contractKind()
}

// FixedTextEnvelope is the envelope used for corrections.
var FixedTextEnvelope = FreeTextEnveloped{Open: "<fixed_text>", Close: "</fixed_text>"}

// ParseEnvelope extracts the enveloped text from a reply. The text after
// the opening tag wins; when nothing follows it, the text before it is used.
// A trailing closing tag is stripped. A reply without the opening tag is
// returned trimmed.
func ParseEnvelope(raw string, env FreeTextEnveloped) string {
	before, after, found := strings.Cut(raw, env.Open)
	if !found {
		return strings.TrimSpace(stripClose(raw, env.Close))
	}
	// Only the first envelope counts.
	if i := strings.Index(after, env.Open); i >= 0 {
		after = after[:i]
	}
	text := strings.TrimSpace(stripClose(after, env.Close))
	if text == "" {
		text = strings.TrimSpace(stripClose(before, env.Close))
	}
	return text
}

func stripClose(s, closeTag string) string {
	if closeTag == "" {
		return s
	}
	if i := strings.Index(s, closeTag); i >= 0 {
		return s[:i]
	}
	return s
}

var codeBlockRe = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")

func stripCodeBlock(s string) string {
	s = strings.TrimSpace(s)
	if m := codeBlockRe.FindStringSubmatch(s); len(m) > 1 {
		return m[1]
	}
	return s
}

// DecodeStructured validates raw against the contract schema and decodes it
// into out. Any mismatch is a MalformedResponseError carrying raw.
func DecodeStructured(c StructuredSchema, raw string, out any) error {
	body := stripCodeBlock(raw)

	var probe map[string]any
	if err := json.Unmarshal([]byte(body), &probe); err != nil {
		return &fault.MalformedResponseError{Field: c.Field, Raw: raw, Err: fmt.Errorf("not a JSON object: %w", err)}
	}
	if _, ok := probe[c.Field]; !ok {
		return &fault.MalformedResponseError{Field: c.Field, Raw: raw, Err: fmt.Errorf("missing required field")}
	}

	if c.Schema != nil {
		result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(c.Schema), gojsonschema.NewStringLoader(body))
		if err != nil {
			return &fault.MalformedResponseError{Field: c.Field, Raw: raw, Err: err}
		}
		if !result.Valid() {
			msgs := make([]string, 0, len(result.Errors()))
			for _, e := range result.Errors() {
				msgs = append(msgs, e.String())
			}
			return &fault.MalformedResponseError{Field: c.Field, Raw: raw, Err: fmt.Errorf("schema: %s", strings.Join(msgs, "; "))}
		}
	}

	if err := json.Unmarshal([]byte(body), out); err != nil {
		return &fault.MalformedResponseError{Field: c.Field, Raw: raw, Err: err}
	}
	return nil
}

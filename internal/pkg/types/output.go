package types

import (
	"encoding/json"
	"strings"
)

// Kind identifies which variant an Output holds.
type Kind int

const (
	// KindRaw marks output that is not a valid JSON document and is kept as trimmed text.
	KindRaw Kind = iota
	// KindStructured marks output that parsed as a JSON document.
	KindStructured
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindStructured:
		return "structured"
	case KindRaw:
		return "raw"
	default:
		return "unknown"
	}
}

// Output is the parsed-or-raw result returned by external peers such as the node
// command line interface or the verification endpoint.
//
// Exactly one variant is populated, selected by Kind. Consumers are expected to
// switch on Kind (or use the typed accessors) instead of probing the content.
type Output struct {
	kind       Kind
	structured json.RawMessage
	raw        string
}

// ParseOutput trims the given text and classifies it.
//
// If the trimmed text is a valid JSON document it becomes a structured Output,
// otherwise it is kept as raw text. Hexadecimal payloads such as "0100..." are not
// valid JSON and therefore always come back as raw text.
func ParseOutput(text string) Output {
	trimmed := strings.TrimSpace(text)
	if trimmed != "" && json.Valid([]byte(trimmed)) {
		return Output{kind: KindStructured, structured: json.RawMessage(trimmed)}
	}

	return Output{kind: KindRaw, raw: trimmed}
}

// NewStructuredOutput wraps an already validated JSON document.
func NewStructuredOutput(doc json.RawMessage) Output {
	return Output{kind: KindStructured, structured: doc}
}

// NewRawOutput wraps plain text.
func NewRawOutput(text string) Output {
	return Output{kind: KindRaw, raw: text}
}

// Kind reports which variant the Output holds.
func (o Output) Kind() Kind {
	return o.kind
}

// Structured returns the JSON document and true when the Output is structured.
func (o Output) Structured() (json.RawMessage, bool) {
	if o.kind != KindStructured {
		return nil, false
	}
	return o.structured, true
}

// Raw returns the text and true when the Output is raw.
func (o Output) Raw() (string, bool) {
	if o.kind != KindRaw {
		return "", false
	}
	return o.raw, true
}

// Text returns the textual value carried by the Output.
//
// Raw output yields its text. Structured output yields a value only when the
// document is a JSON string. Every other document (object, array, number, bool,
// null) reports false.
func (o Output) Text() (string, bool) {
	switch o.kind {
	case KindRaw:
		return o.raw, true
	case KindStructured:
		var s string
		if err := json.Unmarshal(o.structured, &s); err != nil {
			return "", false
		}
		return s, true
	default:
		return "", false
	}
}

// String renders the Output for diagnostics.
func (o Output) String() string {
	if o.kind == KindStructured {
		return string(o.structured)
	}
	return o.raw
}

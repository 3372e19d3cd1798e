package oracle

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
)

// Validator is implemented by answer types that check their own enums and
// required fields after decoding.
type Validator interface {
	Validate() error
}

// ParseReply splits a reply into its reasoning trace and final answer. The
// reply must be a JSON array whose last element is an object. A single
// surrounding markdown code fence is tolerated; any other text is not.
func ParseReply(raw string) (json.RawMessage, []json.RawMessage, error) {
	text := stripFence(strings.TrimSpace(raw))
	if !strings.HasPrefix(text, "[") {
		return nil, nil, errors.New("reply is not a JSON array")
	}

	dec := json.NewDecoder(strings.NewReader(text))
	var items []json.RawMessage
	if err := dec.Decode(&items); err != nil {
		return nil, nil, fmt.Errorf("reply is not valid JSON: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, nil, errors.New("unexpected text after JSON array")
	}
	if len(items) == 0 {
		return nil, nil, errors.New("reply array is empty")
	}

	final := bytes.TrimSpace(items[len(items)-1])
	if len(final) == 0 || final[0] != '{' {
		return nil, nil, errors.New("final element is not an object")
	}
	return final, items[:len(items)-1], nil
}

func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		return s
	}
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}

// DecodeFinal strictly decodes the final answer into out: unknown keys are
// rejected and out.Validate is called when available.
func DecodeFinal(final json.RawMessage, out any) error {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return errors.New("decode target must be a non-nil pointer")
	}
	// A retry must not inherit fields from an earlier, rejected answer.
	rv.Elem().Set(reflect.Zero(rv.Elem().Type()))

	dec := json.NewDecoder(bytes.NewReader(final))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("final answer does not match schema: %w", err)
	}
	if v, ok := out.(Validator); ok {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

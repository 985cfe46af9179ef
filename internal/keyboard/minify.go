// Package keyboard holds the state behind Telegram keyboards: the registry of
// users awaiting a reply-keyboard answer, the registry of inline keyboards
// awaiting button clicks, and the compact encoding of inline button payloads.
//
// Telegram limits callback data to 64 bytes, so payloads are JSON objects
// whose keys are shortened to the shortest prefix that is unique among the
// payload's fields, in field order. For command_id, shopping_list_item_id,
// button_click_count and shopping_list_amount this yields c, s, b and sh.
package keyboard

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// MaxCallbackData is Telegram's limit for inline button callback data.
const MaxCallbackData = 64

// Field is one named value of a minifiable payload.
type Field struct {
	Name  string
	Value any
}

// MinifiedKeys returns, for each name in order, the shortest prefix not yet
// taken by an earlier name. A name whose every prefix is taken keeps its
// full spelling.
func MinifiedKeys(names []string) []string {
	taken := make(map[string]struct{}, len(names))
	keys := make([]string, len(names))
	for i, name := range names {
		key := name
		for n := 1; n <= len(name); n++ {
			if _, ok := taken[name[:n]]; !ok {
				key = name[:n]
				break
			}
		}
		taken[key] = struct{}{}
		keys[i] = key
	}
	return keys
}

// Minify encodes fields as compact JSON with minified keys, preserving field
// order. It fails with ErrPayloadTooLarge above MaxCallbackData bytes.
func Minify(fields []Field) (string, error) {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	keys := MinifiedKeys(names)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, _ := json.Marshal(keys[i])
		v, err := json.Marshal(f.Value)
		if err != nil {
			return "", fmt.Errorf("minify %s: %w", f.Name, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')

	if buf.Len() > MaxCallbackData {
		return "", fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, buf.Len())
	}
	return buf.String(), nil
}

// Expand decodes a minified payload back into raw values keyed by the full
// field names. Keys missing from text are absent from the result.
func Expand(text string, names []string) (map[string]json.RawMessage, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	out := make(map[string]json.RawMessage, len(names))
	for i, key := range MinifiedKeys(names) {
		if v, ok := raw[key]; ok {
			out[names[i]] = v
		}
	}
	return out, nil
}

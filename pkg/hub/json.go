package hub

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"unicode/utf16"
)

// canonicalJson serializes a decoded JSON value the way the hub does before
// signing: keys sorted, ", " and ": " separators and non ascii characters escaped.
func canonicalJson(value any) (string, error) {
	var buffer strings.Builder
	if err := writeCanonical(&buffer, value); err != nil {
		return "", err
	}
	return buffer.String(), nil
}

func writeCanonical(buffer *strings.Builder, value any) error {
	switch v := value.(type) {
	case nil:
		buffer.WriteString("null")
	case bool:
		if v {
			buffer.WriteString("true")
		} else {
			buffer.WriteString("false")
		}
	case json.Number:
		buffer.WriteString(v.String())
	case string:
		writeString(buffer, v)
	case []any:
		buffer.WriteByte('[')
		for i, item := range v {
			if i > 0 {
				buffer.WriteString(", ")
			}
			if err := writeCanonical(buffer, item); err != nil {
				return err
			}
		}
		buffer.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		slices.Sort(keys)
		buffer.WriteByte('{')
		for i, key := range keys {
			if i > 0 {
				buffer.WriteString(", ")
			}
			writeString(buffer, key)
			buffer.WriteString(": ")
			if err := writeCanonical(buffer, v[key]); err != nil {
				return err
			}
		}
		buffer.WriteByte('}')
	default:
		return fmt.Errorf("unsupported json value %T", value)
	}
	return nil
}

func writeString(buffer *strings.Builder, value string) {
	buffer.WriteByte('"')
	for _, r := range value {
		switch r {
		case '"':
			buffer.WriteString(`\"`)
		case '\\':
			buffer.WriteString(`\\`)
		case '\n':
			buffer.WriteString(`\n`)
		case '\r':
			buffer.WriteString(`\r`)
		case '\t':
			buffer.WriteString(`\t`)
		case '\b':
			buffer.WriteString(`\b`)
		case '\f':
			buffer.WriteString(`\f`)
		default:
			switch {
			case r < 0x20 || (r >= 0x7f && r <= 0xffff):
				fmt.Fprintf(buffer, `\u%04x`, r)
			case r > 0xffff:
				high, low := utf16.EncodeRune(r)
				fmt.Fprintf(buffer, `\u%04x\u%04x`, high, low)
			default:
				buffer.WriteRune(r)
			}
		}
	}
	buffer.WriteByte('"')
}

// toGeneric converts any marshalable value into maps, slices and json.Number.
func toGeneric(value any) (any, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return decodeGeneric(raw)
}

func decodeGeneric(raw []byte) (any, error) {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var result any
	if err := decoder.Decode(&result); err != nil {
		return nil, err
	}
	return result, nil
}

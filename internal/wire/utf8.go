package wire

import (
	"bytes"
	"unicode/utf8"
)

// newUTF8Reader returns a reader over data, or over an empty buffer if data
// is not valid UTF-8 — the json.Decoder then fails to decode, producing the
// same bad_json rejection spec.md §4.1 mandates for non-UTF-8 datagrams.
func newUTF8Reader(data []byte) *bytes.Reader {
	if !utf8.Valid(data) {
		return bytes.NewReader(nil)
	}
	return bytes.NewReader(data)
}

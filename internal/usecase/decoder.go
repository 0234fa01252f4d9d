package usecase

import (
	"strings"
	"unicode/utf8"
)

const replacementChar = "\uFFFD"

// utf8Decoder turns a sequence of byte chunks into text without splitting
// runes: an incomplete trailing sequence is held back until the next chunk.
type utf8Decoder struct {
	pending []byte
}

func (d *utf8Decoder) Decode(p []byte) string {
	buf := make([]byte, 0, len(d.pending)+len(p))
	buf = append(buf, d.pending...)
	buf = append(buf, p...)
	d.pending = nil

	cut := len(buf)
	for i := len(buf) - 1; i >= 0 && i > len(buf)-utf8.UTFMax; i-- {
		if !utf8.RuneStart(buf[i]) {
			continue
		}
		if !utf8.FullRune(buf[i:]) {
			cut = i
		}
		break
	}
	if cut < len(buf) {
		d.pending = append([]byte(nil), buf[cut:]...)
	}
	return strings.ToValidUTF8(string(buf[:cut]), replacementChar)
}

// Flush ends the stream. A dangling partial rune becomes U+FFFD.
func (d *utf8Decoder) Flush() string {
	if len(d.pending) == 0 {
		return ""
	}
	d.pending = nil
	return replacementChar
}

// Discard drops any held-back bytes.
func (d *utf8Decoder) Discard() {
	d.pending = nil
}

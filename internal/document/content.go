package document

import (
	"bytes"
	"strconv"
	"strings"
	"unicode/utf16"
)

// tjSpaceThreshold is the TJ displacement (thousandths of text space) below
// which a gap is rendered as a word space.
const tjSpaceThreshold = -180

type tokenKind int

const (
	tokOperator tokenKind = iota
	tokNumber
	tokString
	tokName
	tokArrayStart
	tokArrayEnd
	tokOther
)

type token struct {
	kind tokenKind
	text string  // name or operator
	raw  []byte  // tokString bytes, undecoded
	num  float64 // tokNumber
}

// ScanContentText returns the text shown by a PDF page content stream.
// It interprets the text-showing operators (Tj, TJ, ', ") and turns line
// moves into newlines. With no font information, string bytes are read as
// UTF-16BE when they look two-byte and as WinAnsi otherwise.
func ScanContentText(content []byte) string {
	return scanContent(content, nil)
}

// scanContent is ScanContentText with the page's fonts, keyed by resource
// name. Strings are decoded through the font selected by the last Tf.
func scanContent(content []byte, fonts map[string]*pdfFont) string {
	s := &contentScanner{data: content}
	w := &textWriter{}

	var operands []token
	var array []token
	inArray := false
	lastY, haveY := 0.0, false
	var font *pdfFont

	for {
		tok, ok := s.next()
		if !ok {
			break
		}

		switch tok.kind {
		case tokArrayStart:
			inArray = true
			array = array[:0]
			continue
		case tokArrayEnd:
			inArray = false
			continue
		}
		if inArray {
			array = append(array, tok)
			continue
		}
		if tok.kind != tokOperator {
			operands = append(operands, tok)
			continue
		}

		switch tok.text {
		case "BT":
			haveY = false
		case "Tf":
			if len(operands) >= 2 && operands[len(operands)-2].kind == tokName {
				font = fonts[operands[len(operands)-2].text]
			}
		case "ET", "T*":
			w.newline()
		case "Tj":
			if str, ok := lastString(operands); ok {
				w.write(font.decode(str))
			}
		case "'", `"`:
			w.newline()
			if str, ok := lastString(operands); ok {
				w.write(font.decode(str))
			}
		case "TJ":
			for _, el := range array {
				switch el.kind {
				case tokString:
					w.write(font.decode(el.raw))
				case tokNumber:
					if el.num < tjSpaceThreshold {
						w.space()
					}
				}
			}
			array = array[:0]
		case "Td", "TD":
			if len(operands) >= 2 && operands[len(operands)-1].kind == tokNumber {
				if operands[len(operands)-1].num != 0 {
					w.newline()
				} else {
					w.space()
				}
			}
		case "Tm":
			if len(operands) >= 6 && operands[len(operands)-1].kind == tokNumber {
				y := operands[len(operands)-1].num
				if haveY && y != lastY {
					w.newline()
				} else if haveY {
					w.space()
				}
				lastY, haveY = y, true
			}
		case "ID":
			s.skipInlineImage()
		}
		operands = operands[:0]
	}

	return w.String()
}

func lastString(operands []token) ([]byte, bool) {
	for i := len(operands) - 1; i >= 0; i-- {
		if operands[i].kind == tokString {
			return operands[i].raw, true
		}
	}
	return nil, false
}

// textWriter accumulates text, collapsing redundant separators.
type textWriter struct {
	sb strings.Builder
}

func (w *textWriter) last() byte {
	s := w.sb.String()
	if s == "" {
		return 0
	}
	return s[len(s)-1]
}

func (w *textWriter) write(s string) {
	w.sb.WriteString(s)
}

func (w *textWriter) space() {
	if last := w.last(); last != 0 && last != ' ' && last != '\n' {
		w.sb.WriteByte(' ')
	}
}

func (w *textWriter) newline() {
	if last := w.last(); last != 0 && last != '\n' {
		w.sb.WriteByte('\n')
	}
}

func (w *textWriter) String() string {
	lines := strings.Split(w.sb.String(), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// contentScanner tokenizes a content stream.
type contentScanner struct {
	data []byte
	pos  int
}

func isPDFSpace(c byte) bool {
	switch c {
	case 0, '\t', '\n', '\f', '\r', ' ':
		return true
	}
	return false
}

func isPDFDelim(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func (s *contentScanner) next() (token, bool) {
	for s.pos < len(s.data) {
		c := s.data[s.pos]
		switch {
		case isPDFSpace(c):
			s.pos++
		case c == '%':
			for s.pos < len(s.data) && s.data[s.pos] != '\n' && s.data[s.pos] != '\r' {
				s.pos++
			}
		case c == '(':
			s.pos++
			return token{kind: tokString, raw: s.literal()}, true
		case c == '<':
			if s.pos+1 < len(s.data) && s.data[s.pos+1] == '<' {
				s.pos += 2
				return token{kind: tokOther, text: "<<"}, true
			}
			s.pos++
			return token{kind: tokString, raw: s.hex()}, true
		case c == '>':
			s.pos++
			if s.pos < len(s.data) && s.data[s.pos] == '>' {
				s.pos++
			}
			return token{kind: tokOther, text: ">>"}, true
		case c == '[':
			s.pos++
			return token{kind: tokArrayStart}, true
		case c == ']':
			s.pos++
			return token{kind: tokArrayEnd}, true
		case c == '/':
			s.pos++
			return token{kind: tokName, text: s.regular()}, true
		case c == '{' || c == '}' || c == ')':
			s.pos++
		default:
			word := s.regular()
			if n, err := strconv.ParseFloat(word, 64); err == nil {
				return token{kind: tokNumber, num: n, text: word}, true
			}
			return token{kind: tokOperator, text: word}, true
		}
	}
	return token{}, false
}

func (s *contentScanner) regular() string {
	start := s.pos
	for s.pos < len(s.data) && !isPDFSpace(s.data[s.pos]) && !isPDFDelim(s.data[s.pos]) {
		s.pos++
	}
	return string(s.data[start:s.pos])
}

// literal reads a (string) body after the opening paren.
func (s *contentScanner) literal() []byte {
	var out []byte
	depth := 1
	for s.pos < len(s.data) {
		c := s.data[s.pos]
		s.pos++
		switch c {
		case '(':
			depth++
			out = append(out, c)
		case ')':
			depth--
			if depth == 0 {
				return out
			}
			out = append(out, c)
		case '\\':
			if s.pos >= len(s.data) {
				return out
			}
			e := s.data[s.pos]
			s.pos++
			switch e {
			case 'n':
				out = append(out, '\n')
			case 'r':
				out = append(out, '\r')
			case 't':
				out = append(out, '\t')
			case 'b':
				out = append(out, '\b')
			case 'f':
				out = append(out, '\f')
			case '\r':
				if s.pos < len(s.data) && s.data[s.pos] == '\n' {
					s.pos++
				}
			case '\n':
			default:
				if e >= '0' && e <= '7' {
					v := int(e - '0')
					for i := 0; i < 2 && s.pos < len(s.data); i++ {
						d := s.data[s.pos]
						if d < '0' || d > '7' {
							break
						}
						v = v*8 + int(d-'0')
						s.pos++
					}
					out = append(out, byte(v))
				} else {
					out = append(out, e)
				}
			}
		default:
			out = append(out, c)
		}
	}
	return out
}

// hex reads a <hex> string body after the opening angle bracket.
func (s *contentScanner) hex() []byte {
	var digits []byte
	for s.pos < len(s.data) {
		c := s.data[s.pos]
		s.pos++
		if c == '>' {
			break
		}
		if isPDFSpace(c) {
			continue
		}
		digits = append(digits, c)
	}
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	out := make([]byte, 0, len(digits)/2)
	for i := 0; i+1 < len(digits); i += 2 {
		v, err := strconv.ParseUint(string(digits[i:i+2]), 16, 8)
		if err != nil {
			continue
		}
		out = append(out, byte(v))
	}
	return out
}

// skipInlineImage advances past binary inline image data up to EI.
func (s *contentScanner) skipInlineImage() {
	idx := bytes.Index(s.data[s.pos:], []byte("EI"))
	for idx >= 0 {
		end := s.pos + idx
		before := end == 0 || isPDFSpace(s.data[end-1])
		after := end+2 >= len(s.data) || isPDFSpace(s.data[end+2])
		if before && after {
			s.pos = end + 2
			return
		}
		next := bytes.Index(s.data[end+2:], []byte("EI"))
		if next < 0 {
			break
		}
		idx = end + 2 + next - s.pos
	}
	s.pos = len(s.data)
}

// decodeTextBytes maps string bytes of an unknown font to text: UTF-16BE
// when marked with a BOM or laid out as two-byte codes, WinAnsi otherwise.
func decodeTextBytes(b []byte) string {
	if len(b) >= 2 && b[0] == 0xFE && b[1] == 0xFF {
		return decodeUTF16(b[2:])
	}
	if len(b) >= 2 && len(b)%2 == 0 && looksTwoByte(b) {
		return decodeUTF16(b)
	}
	return decodeWinAnsi(b)
}

// winAnsiHigh holds WinAnsiEncoding for 0x80-0x9F, where it departs from
// Latin-1. Zero marks an undefined code.
var winAnsiHigh = [32]rune{
	'\u20AC', 0, '\u201A', '\u0192', '\u201E', '\u2026', '\u2020', '\u2021',
	'\u02C6', '\u2030', '\u0160', '\u2039', '\u0152', 0, '\u017D', 0,
	0, '\u2018', '\u2019', '\u201C', '\u201D', '\u2022', '\u2013', '\u2014',
	'\u02DC', '\u2122', '\u0161', '\u203A', '\u0153', 0, '\u017E', '\u0178',
}

// decodeWinAnsi maps single-byte codes through WinAnsiEncoding.
// Control bytes and undefined codes are dropped.
func decodeWinAnsi(b []byte) string {
	var sb strings.Builder
	for _, c := range b {
		switch {
		case c >= 0x80 && c <= 0x9F:
			if r := winAnsiHigh[c-0x80]; r != 0 {
				sb.WriteRune(r)
			}
		case c < 0x20 && c != '\n' && c != '\t':
		default:
			sb.WriteRune(rune(c))
		}
	}
	return sb.String()
}

// looksTwoByte reports whether every high byte is zero, as in Identity-H
// encoded Latin text.
func looksTwoByte(b []byte) bool {
	for i := 0; i < len(b); i += 2 {
		if b[i] != 0 {
			return false
		}
	}
	return true
}

func decodeUTF16(b []byte) string {
	units := make([]uint16, 0, len(b)/2)
	for i := 0; i+1 < len(b); i += 2 {
		units = append(units, uint16(b[i])<<8|uint16(b[i+1]))
	}
	var sb strings.Builder
	for _, r := range utf16.Decode(units) {
		if r < 0x20 && r != '\n' && r != '\t' {
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

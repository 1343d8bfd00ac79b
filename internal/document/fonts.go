package document

import (
	"sort"
	"strings"
)

// pdfFont decodes the string operands shown with one font.
// A nil *pdfFont stands for an unknown font.
type pdfFont struct {
	composite bool  // Type0: codes are usually two bytes wide
	toUnicode *cmap // nil when the font has no ToUnicode stream
}

func (f *pdfFont) decode(b []byte) string {
	switch {
	case f == nil:
		return decodeTextBytes(b)
	case f.toUnicode != nil:
		return f.toUnicode.decode(b, f.composite)
	case f.composite:
		// Glyph ids with no Unicode map carry no recoverable text.
		return ""
	default:
		return decodeWinAnsi(b)
	}
}

type codeSpace struct {
	lo, hi uint32
	n      int // byte width
}

type cmapKey struct {
	code uint32
	n    int
}

type bfRange struct {
	lo, hi uint32
	n      int
	dst    []uint16 // UTF-16 of lo; the last unit is offset for later codes
	list   []string // per-code destinations, when given as an array
}

// cmap is a parsed ToUnicode CMap.
type cmap struct {
	spaces []codeSpace
	chars  map[cmapKey]string
	ranges []bfRange
}

// cmapOperand is a string or an array of strings inside a CMap section.
type cmapOperand struct {
	raw  []byte
	list [][]byte
}

// parseCMap reads the codespace, bfchar and bfrange sections of a
// ToUnicode CMap. Malformed entries are ignored.
func parseCMap(data []byte) *cmap {
	m := &cmap{chars: make(map[cmapKey]string)}
	s := &contentScanner{data: data}

	var (
		section  string
		operands []cmapOperand
		inArray  bool
		array    [][]byte
	)

	for {
		tok, ok := s.next()
		if !ok {
			break
		}

		switch tok.kind {
		case tokOperator:
			switch tok.text {
			case "begincodespacerange", "beginbfchar", "beginbfrange":
				section = tok.text
			default:
				section = ""
			}
			operands = operands[:0]
			continue
		case tokArrayStart:
			inArray, array = true, nil
			continue
		case tokArrayEnd:
			inArray = false
			operands = append(operands, cmapOperand{list: array})
		case tokString:
			if inArray {
				array = append(array, tok.raw)
				continue
			}
			operands = append(operands, cmapOperand{raw: tok.raw})
		default:
			continue
		}

		switch section {
		case "begincodespacerange":
			if len(operands) == 2 {
				lo, hi := operands[0].raw, operands[1].raw
				if len(lo) > 0 && len(lo) <= 4 && len(lo) == len(hi) {
					m.spaces = append(m.spaces, codeSpace{lo: beUint(lo), hi: beUint(hi), n: len(lo)})
				}
				operands = operands[:0]
			}
		case "beginbfchar":
			if len(operands) == 2 {
				src, dst := operands[0].raw, operands[1].raw
				if len(src) > 0 && len(src) <= 4 {
					m.chars[cmapKey{beUint(src), len(src)}] = decodeUTF16(dst)
				}
				operands = operands[:0]
			}
		case "beginbfrange":
			if len(operands) == 3 {
				m.addRange(operands[0].raw, operands[1].raw, operands[2])
				operands = operands[:0]
			}
		default:
			operands = operands[:0]
		}
	}

	sort.Slice(m.spaces, func(i, j int) bool { return m.spaces[i].n < m.spaces[j].n })
	return m
}

func (m *cmap) addRange(lo, hi []byte, dst cmapOperand) {
	if len(lo) == 0 || len(lo) > 4 || len(lo) != len(hi) {
		return
	}
	r := bfRange{lo: beUint(lo), hi: beUint(hi), n: len(lo)}
	if r.hi < r.lo {
		return
	}
	if dst.list != nil {
		for _, d := range dst.list {
			r.list = append(r.list, decodeUTF16(d))
		}
	} else {
		if len(dst.raw) < 2 {
			return
		}
		for i := 0; i+1 < len(dst.raw); i += 2 {
			r.dst = append(r.dst, uint16(dst.raw[i])<<8|uint16(dst.raw[i+1]))
		}
	}
	m.ranges = append(m.ranges, r)
}

func (m *cmap) lookup(code uint32, n int) (string, bool) {
	if s, ok := m.chars[cmapKey{code, n}]; ok {
		return s, true
	}
	for _, r := range m.ranges {
		if r.n != n || code < r.lo || code > r.hi {
			continue
		}
		off := code - r.lo
		if r.list != nil {
			if int(off) < len(r.list) {
				return r.list[off], true
			}
			return "", false
		}
		units := append([]uint16(nil), r.dst...)
		units[len(units)-1] += uint16(off)
		b := make([]byte, 0, 2*len(units))
		for _, u := range units {
			b = append(b, byte(u>>8), byte(u))
		}
		return decodeUTF16(b), true
	}
	return "", false
}

// codeWidth returns the byte width of the code starting at b.
func (m *cmap) codeWidth(b []byte, composite bool) int {
	for _, sp := range m.spaces {
		if sp.n > len(b) {
			continue
		}
		if c := beUint(b[:sp.n]); c >= sp.lo && c <= sp.hi {
			return sp.n
		}
	}
	if len(m.spaces) > 0 {
		return m.spaces[0].n
	}
	if composite {
		return 2
	}
	return 1
}

// decode maps each code in b through the CMap. Unmapped single-byte codes
// of simple fonts fall back to WinAnsi; other unmapped codes are dropped.
func (m *cmap) decode(b []byte, composite bool) string {
	var sb strings.Builder
	for i := 0; i < len(b); {
		n := m.codeWidth(b[i:], composite)
		if i+n > len(b) {
			break
		}
		code := beUint(b[i : i+n])
		i += n

		if s, ok := m.lookup(code, n); ok {
			sb.WriteString(s)
			continue
		}
		if n == 1 && !composite {
			sb.WriteString(decodeWinAnsi([]byte{byte(code)}))
		}
	}
	return sb.String()
}

func beUint(b []byte) uint32 {
	var v uint32
	for _, c := range b {
		v = v<<8 | uint32(c)
	}
	return v
}

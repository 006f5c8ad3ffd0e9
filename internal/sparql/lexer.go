package sparql

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tokEOF      tokenKind = iota
	tokIRI                // <http://...>
	tokPName              // prefix:local
	tokVar                // ?name or $name
	tokString             // "..." or '...'
	tokLangTag            // @en
	tokDatatype           // ^^
	tokInteger
	tokDecimal
	tokWord // keywords, 'a', true/false
	tokPunct
)

type token struct {
	kind tokenKind
	text string // decoded text (no delimiters)
	pos  int
}

type lexer struct {
	src string
	pos int
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.src) {
		r, size := utf8.DecodeRuneInString(l.src[l.pos:])
		switch {
		case unicode.IsSpace(r):
			l.pos += size
		case r == '#':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}
		default:
			return
		}
	}
}

func (l *lexer) next() (token, error) {
	l.skipSpace()
	start := l.pos
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, pos: start}, nil
	}
	c := l.src[l.pos]
	switch {
	case c == '<':
		end := strings.IndexByte(l.src[l.pos+1:], '>')
		if end < 0 {
			return token{}, errorAt(start, "unterminated IRI")
		}
		iri := l.src[l.pos+1 : l.pos+1+end]
		if strings.ContainsAny(iri, " \t\n\"{}") {
			return token{}, errorAt(start, "invalid character in IRI")
		}
		l.pos += end + 2
		return token{kind: tokIRI, text: iri, pos: start}, nil
	case c == '?' || c == '$':
		l.pos++
		name := l.scanName()
		if name == "" {
			return token{}, errorAt(start, "empty variable name")
		}
		return token{kind: tokVar, text: name, pos: start}, nil
	case c == '"' || c == '\'':
		s, err := l.scanString(c)
		if err != nil {
			return token{}, err
		}
		return token{kind: tokString, text: s, pos: start}, nil
	case c == '@':
		l.pos++
		tag := l.scanWhile(func(r rune) bool { return r == '-' || isAlnum(r) })
		if tag == "" {
			return token{}, errorAt(start, "empty language tag")
		}
		return token{kind: tokLangTag, text: tag, pos: start}, nil
	case c == '^':
		if strings.HasPrefix(l.src[l.pos:], "^^") {
			l.pos += 2
			return token{kind: tokDatatype, text: "^^", pos: start}, nil
		}
		return token{}, errorAt(start, "unexpected '^'")
	case c == '+' || c == '-' || (c >= '0' && c <= '9') || (c == '.' && l.pos+1 < len(l.src) && isDigit(l.src[l.pos+1])):
		return l.scanNumber()
	case strings.IndexByte("{}.;,()*", c) >= 0:
		l.pos++
		return token{kind: tokPunct, text: string(c), pos: start}, nil
	}

	word := l.scanName()
	if word == "" && (l.pos >= len(l.src) || l.src[l.pos] != ':') {
		r, _ := utf8.DecodeRuneInString(l.src[l.pos:])
		return token{}, errorAt(start, "unexpected character %q", r)
	}
	if l.pos < len(l.src) && l.src[l.pos] == ':' {
		l.pos++
		local := l.scanLocal()
		return token{kind: tokPName, text: word + ":" + local, pos: start}, nil
	}
	return token{kind: tokWord, text: word, pos: start}, nil
}

func (l *lexer) scanWhile(ok func(rune) bool) string {
	start := l.pos
	for l.pos < len(l.src) {
		r, size := utf8.DecodeRuneInString(l.src[l.pos:])
		if !ok(r) {
			break
		}
		l.pos += size
	}
	return l.src[start:l.pos]
}

func (l *lexer) scanName() string {
	return l.scanWhile(func(r rune) bool { return r == '_' || r == '-' || isAlnum(r) })
}

// scanLocal reads the local part of a prefixed name. A trailing '.' is not
// part of the name (it terminates the triple).
func (l *lexer) scanLocal() string {
	s := l.scanWhile(func(r rune) bool {
		return r == '_' || r == '-' || r == '.' || r == '/' || r == '#' || r == '%' || isAlnum(r)
	})
	for strings.HasSuffix(s, ".") {
		s = s[:len(s)-1]
		l.pos--
	}
	return s
}

func (l *lexer) scanString(quote byte) (string, error) {
	start := l.pos
	l.pos++
	var b strings.Builder
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch c {
		case quote:
			l.pos++
			return b.String(), nil
		case '\\':
			if l.pos+1 >= len(l.src) {
				return "", errorAt(l.pos, "unterminated escape")
			}
			esc := l.src[l.pos+1]
			l.pos += 2
			switch esc {
			case 't':
				b.WriteByte('\t')
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case 'b':
				b.WriteByte('\b')
			case 'f':
				b.WriteByte('\f')
			case '"', '\'', '\\':
				b.WriteByte(esc)
			default:
				return "", errorAt(l.pos-2, "unknown escape \\%c", esc)
			}
		case '\n':
			return "", errorAt(l.pos, "newline in string literal")
		default:
			b.WriteByte(c)
			l.pos++
		}
	}
	return "", errorAt(start, "unterminated string literal")
}

func (l *lexer) scanNumber() (token, error) {
	start := l.pos
	if c := l.src[l.pos]; c == '+' || c == '-' {
		l.pos++
	}
	digits := l.scanWhile(func(r rune) bool { return r >= '0' && r <= '9' })
	kind := tokInteger
	// A '.' followed by a digit is a decimal point, otherwise a separator.
	if l.pos+1 < len(l.src) && l.src[l.pos] == '.' && isDigit(l.src[l.pos+1]) {
		l.pos++
		l.scanWhile(func(r rune) bool { return r >= '0' && r <= '9' })
		kind = tokDecimal
	} else if digits == "" {
		return token{}, errorAt(start, "malformed number")
	}
	if l.pos < len(l.src) && (l.src[l.pos] == 'e' || l.src[l.pos] == 'E') {
		l.pos++
		if l.pos < len(l.src) && (l.src[l.pos] == '+' || l.src[l.pos] == '-') {
			l.pos++
		}
		if exp := l.scanWhile(func(r rune) bool { return r >= '0' && r <= '9' }); exp == "" {
			return token{}, errorAt(start, "malformed exponent")
		}
		kind = tokDecimal
	}
	return token{kind: kind, text: l.src[start:l.pos], pos: start}, nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isAlnum(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }

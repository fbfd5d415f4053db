package gitconfig

import (
	"fmt"
	"strings"
)

// ParseError reports malformed configuration text. Line and Column are
// 1-based; Column counts bytes.
type ParseError struct {
	Line   int
	Column int
	Msg    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("config:%d:%d: %s", e.Line, e.Column, e.Msg)
}

const eof = -1

type scanner struct {
	src  string
	pos  int
	line int
	col  int
}

func (s *scanner) peek() int {
	if s.pos >= len(s.src) {
		return eof
	}
	return int(s.src[s.pos])
}

func (s *scanner) next() int {
	c := s.peek()
	if c == eof {
		return eof
	}
	s.pos++
	if c == '\n' {
		s.line++
		s.col = 1
	} else {
		s.col++
	}
	return c
}

func (s *scanner) errorf(format string, args ...any) error {
	return s.errorAt(s.line, s.col, format, args...)
}

func (s *scanner) errorAt(line, col int, format string, args ...any) error {
	return &ParseError{Line: line, Column: col, Msg: fmt.Sprintf(format, args...)}
}

func (s *scanner) skipBlank() {
	for {
		switch s.peek() {
		case ' ', '\t', '\r':
			s.next()
		default:
			return
		}
	}
}

func (s *scanner) skipLine() {
	for {
		switch s.next() {
		case '\n', eof:
			return
		}
	}
}

// Parse reads git-config text.
func Parse(data []byte) (*Config, error) {
	s := &scanner{src: string(data), line: 1, col: 1}
	cfg := &Config{}
	var cur *Section
	for {
		s.skipBlank()
		c := s.peek()
		switch {
		case c == eof:
			return cfg, nil
		case c == '\n':
			s.next()
		case c == '#' || c == ';':
			s.skipLine()
		case c == '[':
			sec, err := s.section()
			if err != nil {
				return nil, err
			}
			cfg.Sections = append(cfg.Sections, sec)
			cur = sec
		case isAlpha(c):
			if cur == nil {
				return nil, s.errorf("variable outside of any section")
			}
			v, err := s.variable()
			if err != nil {
				return nil, err
			}
			cur.Vars = append(cur.Vars, v)
		default:
			return nil, s.errorf("unexpected character %q", rune(c))
		}
	}
}

func (s *scanner) section() (*Section, error) {
	s.next() // '['
	var name strings.Builder
	for {
		c := s.peek()
		if !isAlnum(c) && c != '-' && c != '.' {
			break
		}
		name.WriteByte(byte(s.next()))
	}
	if name.Len() == 0 {
		return nil, s.errorf("empty section name")
	}

	switch c := s.peek(); c {
	case ' ', '\t':
		s.skipBlank()
		if s.peek() != '"' {
			return nil, s.errorf("expected '\"' to start subsection name")
		}
		s.next()
		sub, err := s.subsection()
		if err != nil {
			return nil, err
		}
		if s.peek() != ']' {
			return nil, s.errorf("expected ']' after subsection name")
		}
		s.next()
		if strings.Contains(name.String(), ".") {
			return nil, s.errorf("section name %q may not contain '.' with a subsection", name.String())
		}
		return &Section{Name: strings.ToLower(name.String()), Subsection: sub}, nil
	case ']':
		s.next()
	default:
		return nil, s.errorf("expected ']' after section name")
	}

	n := name.String()
	head, sub, dotted := strings.Cut(n, ".")
	if !dotted {
		return &Section{Name: strings.ToLower(n)}, nil
	}
	if head == "" || sub == "" {
		return nil, s.errorf("malformed section name %q", n)
	}
	return &Section{Name: strings.ToLower(head), Subsection: strings.ToLower(sub)}, nil
}

func (s *scanner) subsection() (string, error) {
	var b strings.Builder
	for {
		line, col := s.line, s.col
		switch c := s.next(); c {
		case eof:
			return "", s.errorAt(line, col, "unterminated subsection name")
		case '\n':
			return "", s.errorAt(line, col, "newline in subsection name")
		case '"':
			return b.String(), nil
		case '\\':
			e := s.next()
			if e == eof || e == '\n' {
				return "", s.errorAt(line, col, "unterminated escape in subsection name")
			}
			b.WriteByte(byte(e))
		default:
			b.WriteByte(byte(c))
		}
	}
}

func (s *scanner) variable() (Var, error) {
	var name strings.Builder
	for isAlnum(s.peek()) || s.peek() == '-' {
		name.WriteByte(byte(s.next()))
	}
	v := Var{Name: strings.ToLower(name.String())}

	s.skipBlank()
	switch c := s.peek(); c {
	case eof:
		v.Value = "true"
	case '\n':
		s.next()
		v.Value = "true"
	case '#', ';':
		s.skipLine()
		v.Value = "true"
	case '=':
		s.next()
		val, err := s.value()
		if err != nil {
			return Var{}, err
		}
		v.Value = val
	default:
		return Var{}, s.errorf("expected '=' after variable %q", v.Name)
	}
	return v, nil
}

// value scans to the end of the line. Unquoted leading and trailing
// whitespace is dropped; interior whitespace is kept.
func (s *scanner) value() (string, error) {
	var b strings.Builder
	quoted := false
	spaces := 0
	comment := false
	for {
		line, col := s.line, s.col
		c := s.next()
		if c == '\n' || c == eof {
			if quoted {
				return "", s.errorAt(line, col, "unterminated quoted value")
			}
			return b.String(), nil
		}
		if comment {
			continue
		}
		if !quoted {
			if c == ' ' || c == '\t' || c == '\r' {
				if b.Len() > 0 {
					spaces++
				}
				continue
			}
			if c == '#' || c == ';' {
				comment = true
				continue
			}
		}
		for ; spaces > 0; spaces-- {
			b.WriteByte(' ')
		}
		switch c {
		case '"':
			quoted = !quoted
		case '\\':
			switch e := s.next(); e {
			case '\n':
			case '\r':
				if s.peek() != '\n' {
					return "", s.errorAt(line, col, "invalid escape '\\r'")
				}
				s.next()
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'b':
				b.WriteByte('\b')
			case '"', '\\':
				b.WriteByte(byte(e))
			case eof:
				return "", s.errorAt(line, col, "unexpected end of input after '\\'")
			default:
				return "", s.errorAt(line, col, "unknown escape sequence '\\%c'", rune(e))
			}
		default:
			b.WriteByte(byte(c))
		}
	}
}

func isAlpha(c int) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isAlnum(c int) bool {
	return isAlpha(c) || (c >= '0' && c <= '9')
}

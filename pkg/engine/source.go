package engine

import "strings"

// kwPrefix marks a keyword after preprocessing.
const kwPrefix = "__kw_"

// preprocessSource rewrites design source into plain zygomys:
//
//   - :keyword becomes the string "__kw_keyword", so keywords need no
//     global symbols and never clash with user variables
//   - kebab-case identifiers become snake_case (svg-path -> svg_path),
//     since zygomys reads a hyphen as subtraction
//   - ; comments become // comments
//
// String literals, backtick strings and comments are left untouched, and
// := is kept.
func preprocessSource(source string) string {
	p := preprocessor{src: source}
	p.out.Grow(len(source) + len(source)/4)
	for p.i < len(p.src) {
		p.step()
	}
	return p.out.String()
}

type preprocessor struct {
	src string
	i   int
	out strings.Builder
}

func (p *preprocessor) step() {
	c := p.src[p.i]
	switch {
	case c == '"':
		p.quoted('"', true)
	case c == '`':
		p.quoted('`', false)
	case c == ';':
		p.comment()
	case c == ':' && p.i+1 < len(p.src) && p.src[p.i+1] == '=':
		p.out.WriteString(":=")
		p.i += 2
	case c == ':' && p.i+1 < len(p.src) && isLetter(p.src[p.i+1]):
		p.keyword()
	case c == '-' && p.i > 0 && p.i+1 < len(p.src) && isIdentChar(p.src[p.i-1]) && isLetter(p.src[p.i+1]):
		p.out.WriteByte('_')
		p.i++
	default:
		p.out.WriteByte(c)
		p.i++
	}
}

// quoted copies a string literal through its closing delimiter.
func (p *preprocessor) quoted(delim byte, escapes bool) {
	p.out.WriteByte(delim)
	p.i++
	for p.i < len(p.src) && p.src[p.i] != delim {
		if escapes && p.src[p.i] == '\\' && p.i+1 < len(p.src) {
			p.out.WriteString(p.src[p.i : p.i+2])
			p.i += 2
			continue
		}
		p.out.WriteByte(p.src[p.i])
		p.i++
	}
	if p.i < len(p.src) {
		p.out.WriteByte(delim)
		p.i++
	}
}

func (p *preprocessor) comment() {
	for p.i < len(p.src) && p.src[p.i] == ';' {
		p.i++
	}
	end := strings.IndexByte(p.src[p.i:], '\n')
	if end < 0 {
		end = len(p.src) - p.i
	}
	p.out.WriteString("//")
	p.out.WriteString(p.src[p.i : p.i+end])
	p.i += end
}

func (p *preprocessor) keyword() {
	j := p.i + 1
	for j < len(p.src) && isKWChar(p.src[j]) {
		j++
	}
	p.out.WriteByte('"')
	p.out.WriteString(kwPrefix)
	p.out.WriteString(p.src[p.i+1 : j])
	p.out.WriteByte('"')
	p.i = j
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isKWChar(c byte) bool {
	return isLetter(c) || isDigit(c) || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || isDigit(c) || c == '_'
}

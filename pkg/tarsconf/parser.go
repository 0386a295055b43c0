package tarsconf

import (
	"errors"
	"strings"
)

// escapeReplacer reverses the parser's escape table when serializing.
var escapeReplacer = strings.NewReplacer(
	`\`, `\\`,
	"\r", `\r`,
	"\n", `\n`,
	"\t", `\t`,
	"=", `\=`,
)

// Parse reads a braced configuration document into a root Domain. The root
// domain itself is unnamed; top-level sections become its subdomains.
func Parse(text string) (*Domain, error) {
	root := newDomain("")
	stack := []*Domain{root}
	lines := strings.Split(text, "\n")

	for i, raw := range lines {
		lineNo := i + 1
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		switch {
		case strings.HasPrefix(line, "</"):
			name, ok := closingTagName(line)
			if !ok {
				return nil, newParseError(lineNo, raw, "malformed closing tag")
			}
			if len(stack) <= 1 {
				return nil, newParseError(lineNo, raw, "closing tag with no open section")
			}
			top := stack[len(stack)-1]
			if top.Name != name {
				return nil, newParseError(lineNo, raw, "mismatched closing tag for <"+top.Name+">")
			}
			stack = stack[:len(stack)-1]

		case strings.HasPrefix(line, "<"):
			name, ok := openingTagName(line)
			if !ok {
				return nil, newParseError(lineNo, raw, "malformed opening tag")
			}
			parent := stack[len(stack)-1]
			child := parent.Subdomain(name)
			stack = append(stack, child)

		default:
			key, value, err := parseKeyValue(line)
			if err != nil {
				return nil, newParseError(lineNo, raw, err.Error())
			}
			stack[len(stack)-1].SetParam(key, value)
		}
	}

	if len(stack) != 1 {
		return nil, newParseError(len(lines), "", "unterminated section <"+stack[len(stack)-1].Name+">")
	}
	return root, nil
}

func openingTagName(line string) (string, bool) {
	if !strings.HasSuffix(line, ">") {
		return "", false
	}
	inner := line[1 : len(line)-1]
	if inner == "" || strings.ContainsAny(inner, "<>") {
		return "", false
	}
	return inner, true
}

func closingTagName(line string) (string, bool) {
	if !strings.HasSuffix(line, ">") {
		return "", false
	}
	inner := line[2 : len(line)-1]
	if inner == "" {
		return "", false
	}
	return inner, true
}

// parseKeyValue splits a "key=value" line honouring the escape table
// (\\ \r \n \t \=), so a literal "=" may appear in the key via "\=".
func parseKeyValue(line string) (key, value string, err error) {
	idx := findUnescapedEquals(line)
	if idx < 0 {
		return "", "", errNoEquals
	}
	key = unescape(line[:idx])
	value = unescape(line[idx+1:])
	return key, value, nil
}

func findUnescapedEquals(s string) int {
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' {
			i++
			continue
		}
		if s[i] == '=' {
			return i
		}
	}
	return -1
}

func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\\' && i+1 < len(s) {
			i++
			switch s[i] {
			case '\\':
				b.WriteByte('\\')
			case 'r':
				b.WriteByte('\r')
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case '=':
				b.WriteByte('=')
			default:
				b.WriteByte('\\')
				b.WriteByte(s[i])
			}
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

var errNoEquals = errors.New("key=value line missing '='")

// Serialize reverses Parse: indents one tab per nesting level, re-escapes
// parameter values, and preserves insertion order for both params and
// subdomains. The root domain's own name/params are never emitted.
func Serialize(d *Domain) string {
	var b strings.Builder
	serializeChildren(&b, d, 0)
	return b.String()
}

func serializeChildren(b *strings.Builder, d *Domain, depth int) {
	indent := strings.Repeat("\t", depth)
	for _, key := range d.ParamOrder() {
		v, _ := d.Param(key)
		b.WriteString(indent)
		b.WriteString(escapeReplacer.Replace(key))
		b.WriteByte('=')
		b.WriteString(escapeReplacer.Replace(v))
		b.WriteByte('\n')
	}
	for _, sub := range d.Subdomains() {
		b.WriteString(indent)
		b.WriteByte('<')
		b.WriteString(sub.Name)
		b.WriteByte('>')
		b.WriteByte('\n')
		serializeChildren(b, sub, depth+1)
		b.WriteString(indent)
		b.WriteString("</")
		b.WriteString(sub.Name)
		b.WriteByte('>')
		b.WriteByte('\n')
	}
}

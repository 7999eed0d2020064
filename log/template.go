package log

import (
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	C "github.com/tradelog/tradelog/constant"
)

type templateToken struct {
	text       string
	isProperty bool
	name       string
	hint       CaptureMode
	alignment  int
	format     string
}

// Template is a parsed message template such as
// "Order filled: {OrderString} {@Fill} at {Price,10:F2}".
type Template struct {
	text       string
	tokens     []templateToken
	names      []string
	positional bool
}

var (
	templateCache     sync.Map
	templateCacheSize atomic.Int32
)

// ParseTemplate parses text. Malformed holes are kept as literal text, so
// parsing never fails.
func ParseTemplate(text string) *Template {
	if cached, loaded := templateCache.Load(text); loaded {
		return cached.(*Template)
	}
	template := parseTemplate(text)
	if templateCacheSize.Load() < C.TemplateCacheSize {
		if _, loaded := templateCache.LoadOrStore(text, template); !loaded {
			templateCacheSize.Add(1)
		}
	}
	return template
}

func parseTemplate(text string) *Template {
	template := &Template{text: text}
	var literal strings.Builder
	flush := func() {
		if literal.Len() > 0 {
			template.tokens = append(template.tokens, templateToken{text: literal.String()})
			literal.Reset()
		}
	}
	for i := 0; i < len(text); {
		c := text[i]
		switch {
		case c == '{' && i+1 < len(text) && text[i+1] == '{':
			literal.WriteByte('{')
			i += 2
		case c == '}' && i+1 < len(text) && text[i+1] == '}':
			literal.WriteByte('}')
			i += 2
		case c == '{':
			end := strings.IndexByte(text[i+1:], '}')
			if end < 0 {
				literal.WriteString(text[i:])
				i = len(text)
				continue
			}
			raw := text[i : i+end+2]
			token, ok := parseHole(raw)
			if !ok {
				literal.WriteString(raw)
			} else {
				flush()
				template.tokens = append(template.tokens, token)
			}
			i += end + 2
		default:
			literal.WriteByte(c)
			i++
		}
	}
	flush()

	seen := make(map[string]bool)
	positional := true
	for _, token := range template.tokens {
		if !token.isProperty {
			continue
		}
		if !isDigits(token.name) {
			positional = false
		}
		if !seen[token.name] {
			seen[token.name] = true
			template.names = append(template.names, token.name)
		}
	}
	template.positional = positional && len(template.names) > 0
	return template
}

func parseHole(raw string) (templateToken, bool) {
	token := templateToken{text: raw, isProperty: true}
	body := raw[1 : len(raw)-1]
	if body == "" {
		return token, false
	}
	switch body[0] {
	case '@':
		token.hint = CaptureDestructure
		body = body[1:]
	case '$':
		token.hint = CaptureStringify
		body = body[1:]
	}
	if index := strings.IndexByte(body, ':'); index >= 0 {
		token.format = body[index+1:]
		body = body[:index]
	}
	if index := strings.IndexByte(body, ','); index >= 0 {
		alignment, err := strconv.Atoi(body[index+1:])
		if err != nil {
			return token, false
		}
		token.alignment = max(-C.MaxAlignment, min(alignment, C.MaxAlignment))
		body = body[:index]
	}
	if body == "" || !isIdentifier(body) {
		return token, false
	}
	token.name = body
	return token, true
}

func isIdentifier(s string) bool {
	for _, c := range s {
		if !(c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z') {
			return false
		}
	}
	return true
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return s != ""
}

func (t *Template) Text() string {
	return t.text
}

// PropertyNames returns the distinct hole names in order of first use.
func (t *Template) PropertyNames() []string {
	return append([]string(nil), t.names...)
}

func (t *Template) hint(name string) CaptureMode {
	for _, token := range t.tokens {
		if token.isProperty && token.name == name {
			return token.hint
		}
	}
	return CaptureDefault
}

// Render substitutes bound properties. Unbound holes render as written.
func (t *Template) Render(lookup func(name string) (Value, bool)) string {
	var builder strings.Builder
	for _, token := range t.tokens {
		if !token.isProperty {
			builder.WriteString(token.text)
			continue
		}
		value, ok := lookup(token.name)
		if !ok {
			builder.WriteString(token.text)
			continue
		}
		var rendered strings.Builder
		value.appendText(&rendered, false, token.format)
		writeAligned(&builder, rendered.String(), token.alignment)
	}
	return builder.String()
}

// writeAligned pads s to at most C.MaxAlignment runes.
func writeAligned(builder *strings.Builder, s string, alignment int) {
	width := alignment
	if width < 0 {
		width = -width
	}
	if width > C.MaxAlignment || width < 0 {
		width = C.MaxAlignment
	}
	padding := width - len([]rune(s))
	if padding <= 0 {
		builder.WriteString(s)
		return
	}
	if alignment < 0 {
		builder.WriteString(s)
		builder.WriteString(strings.Repeat(" ", padding))
	} else {
		builder.WriteString(strings.Repeat(" ", padding))
		builder.WriteString(s)
	}
}

var templateEscaper = strings.NewReplacer("{", "{{", "}", "}}")

// EscapeTemplate quotes braces so that text is rendered verbatim.
func EscapeTemplate(text string) string {
	return templateEscaper.Replace(text)
}

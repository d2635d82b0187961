package sink

import (
	"strings"

	"golang.org/x/net/html"
)

const indentUnit = "  "

// void elements never get a closing tag, so they do not open a level.
var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"source": true, "track": true, "wbr": true,
}

func isHTML(headers map[string]string) bool {
	for k, v := range headers {
		if strings.EqualFold(k, "Content-Type") {
			return strings.Contains(strings.ToLower(v), "html")
		}
	}
	return false
}

// indentHTML puts every tag and text run on its own line, indented by
// nesting depth. Malformed markup is emitted as far as the tokenizer gets.
func indentHTML(body string) string {
	z := html.NewTokenizer(strings.NewReader(body))
	var b strings.Builder
	depth := 0
	line := func(s string) {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(strings.Repeat(indentUnit, depth))
		b.WriteString(s)
	}

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return b.String()
		case html.StartTagToken:
			raw := string(z.Raw())
			name, _ := z.TagName()
			line(raw)
			if !voidElements[string(name)] {
				depth++
			}
		case html.EndTagToken:
			if depth > 0 {
				depth--
			}
			line(string(z.Raw()))
		case html.TextToken:
			if txt := strings.TrimSpace(string(z.Raw())); txt != "" {
				line(txt)
			}
		default:
			line(string(z.Raw()))
		}
	}
}

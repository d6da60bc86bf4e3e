package detail

import (
	"bytes"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromastyles "github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/tidwall/pretty"
)

// detectLexer maps a content type to a chroma lexer name.
func detectLexer(contentType string) string {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "json"):
		return "json"
	case strings.Contains(ct, "html"):
		return "html"
	case strings.Contains(ct, "xml"):
		return "xml"
	case strings.Contains(ct, "css"):
		return "css"
	case strings.Contains(ct, "javascript"), strings.Contains(ct, "ecmascript"):
		return "javascript"
	default:
		return "text"
	}
}

// formatBody pretty-prints JSON and highlights the result.
func formatBody(body, contentType string, width int, wrap bool) string {
	lexerName := detectLexer(contentType)
	src := body
	if lexerName == "json" || (lexerName == "text" && looksLikeJSON(body)) {
		lexerName = "json"
		src = strings.TrimRight(string(pretty.Pretty([]byte(body))), "\n")
	}
	return highlight(src, lexerName, width, wrap)
}

func looksLikeJSON(s string) bool {
	s = strings.TrimSpace(s)
	return len(s) > 1 && (s[0] == '{' || s[0] == '[')
}

// highlight applies chroma syntax highlighting to source.
func highlight(source, lexerName string, width int, wrap bool) string {
	lexer := lexers.Get(lexerName)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := chromastyles.Get("monokai")
	if style == nil {
		style = chromastyles.Fallback
	}

	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	result := source
	if iterator, err := lexer.Tokenise(nil, source); err == nil {
		var buf bytes.Buffer
		if err := formatter.Format(&buf, style, iterator); err == nil {
			result = buf.String()
		}
	}

	if wrap && width > 0 {
		result = lipgloss.NewStyle().Width(width).Render(result)
	}
	return result
}

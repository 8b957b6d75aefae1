package richtext

import (
	"fmt"
	"html"
	"strings"
)

// HTML converts the document to HTML for export and preview rendering.
func (d *Doc) HTML() string {
	return renderContent(d.Root.Content)
}

func renderContent(nodes []Node) string {
	var b strings.Builder
	for _, n := range nodes {
		b.WriteString(renderNode(n))
	}
	return b.String()
}

func renderNode(n Node) string {
	switch n.Type {
	case "paragraph":
		return fmt.Sprintf("<p>%s</p>\n", renderContent(n.Content))
	case "heading":
		level := n.attrInt("level", 1)
		if level < 1 || level > 6 {
			level = 1
		}
		return fmt.Sprintf("<h%d>%s</h%d>\n", level, renderContent(n.Content), level)
	case "bulletList":
		return fmt.Sprintf("<ul>\n%s</ul>\n", renderContent(n.Content))
	case "orderedList":
		return fmt.Sprintf("<ol>\n%s</ol>\n", renderContent(n.Content))
	case "listItem":
		return fmt.Sprintf("<li>%s</li>\n", renderContent(n.Content))
	case "blockquote":
		return fmt.Sprintf("<blockquote>\n%s</blockquote>\n", renderContent(n.Content))
	case "codeBlock":
		return fmt.Sprintf("<pre><code>%s</code></pre>\n", html.EscapeString(plainOf(n)))
	case "text":
		return renderTextWithMarks(n.Text, n.Marks)
	case "hardBreak":
		return "<br>"
	case "image":
		src := n.attrString("src")
		alt := n.attrString("alt")
		return fmt.Sprintf(`<img src="%s" alt="%s">`, html.EscapeString(src), html.EscapeString(alt))
	case "table":
		return fmt.Sprintf("<table>\n%s</table>\n", renderContent(n.Content))
	case "tableRow":
		return fmt.Sprintf("<tr>\n%s</tr>\n", renderContent(n.Content))
	case "tableCell":
		return fmt.Sprintf("<td>%s</td>\n", renderContent(n.Content))
	case "tableHeader":
		return fmt.Sprintf("<th>%s</th>\n", renderContent(n.Content))
	case "horizontalRule":
		return "<hr>\n"
	default:
		// Unknown node type - render content if any
		return renderContent(n.Content)
	}
}

func plainOf(n Node) string {
	var b strings.Builder
	var visit func(Node)
	visit = func(n Node) {
		if n.Type == "text" {
			b.WriteString(n.Text)
			return
		}
		for _, c := range n.Content {
			visit(c)
		}
	}
	visit(n)
	return b.String()
}

func renderTextWithMarks(text string, marks []Mark) string {
	if text == "" {
		return ""
	}
	out := html.EscapeString(text)

	// Apply marks from outside in
	for i := len(marks) - 1; i >= 0; i-- {
		switch marks[i].Type {
		case "bold":
			out = fmt.Sprintf("<strong>%s</strong>", out)
		case "italic":
			out = fmt.Sprintf("<em>%s</em>", out)
		case "code":
			out = fmt.Sprintf("<code>%s</code>", out)
		case "link":
			href := marks[i].attrString("href")
			out = fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(href), out)
		case "strike":
			out = fmt.Sprintf("<s>%s</s>", out)
		case "underline":
			out = fmt.Sprintf("<u>%s</u>", out)
		}
	}
	return out
}

package render

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"unicode/utf8"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"

	"gemchat-backend/internal/models"
)

const (
	assistantAvatar     = "/static/assistant.svg"
	assistantBackground = "#004d5612"
	userBackground      = "#004d56"
	highlightStyle      = "dracula"
	defaultLanguage     = "javascript"
)

type Avatar struct {
	Image    string // set for the assistant
	Initials string // set for the user
}

// Layout is the presentation of one turn. Role only picks the avatar and
// background; segments are the same for either role.
type Layout struct {
	Role       string
	Avatar     Avatar
	Background string
	Segments   []Segment
}

func Turn(msg models.ChatMessage, userName string) Layout {
	l := Layout{
		Role:     msg.Role,
		Segments: Split(msg.Content),
	}
	if msg.Role == models.RoleAssistant {
		l.Avatar = Avatar{Image: assistantAvatar}
		l.Background = assistantBackground
	} else {
		l.Avatar = Avatar{Initials: Initials(userName)}
		l.Background = userBackground
	}
	return l
}

// Initials takes the first letter of the first two words of name, or of the
// only word. An empty name gives "U".
func Initials(name string) string {
	parts := strings.Fields(name)
	switch {
	case len(parts) >= 2:
		return firstRune(parts[0]) + firstRune(parts[1])
	case len(parts) == 1:
		return firstRune(parts[0])
	default:
		return "U"
	}
}

func firstRune(s string) string {
	r, _ := utf8.DecodeRuneInString(s)
	return string(r)
}

// HTML renders the segments: plain text escaped in a paragraph, code run
// through the syntax highlighter.
func (l Layout) HTML() (template.HTML, error) {
	var buf bytes.Buffer
	for _, seg := range l.Segments {
		if seg.Kind == Code {
			if err := highlight(&buf, seg.Text); err != nil {
				return "", err
			}
			continue
		}
		buf.WriteString(`<p class="chat-text">`)
		template.HTMLEscape(&buf, []byte(seg.Text))
		buf.WriteString(`</p>`)
	}
	return template.HTML(buf.String()), nil
}

func highlight(buf *bytes.Buffer, code string) error {
	lexer := lexers.Analyse(code)
	if lexer == nil {
		lexer = lexers.Get(defaultLanguage)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := styles.Get(highlightStyle)
	if style == nil {
		style = styles.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return fmt.Errorf("tokenise code segment: %w", err)
	}

	formatter := chromahtml.New(chromahtml.WithClasses(false), chromahtml.TabWidth(4))
	if err := formatter.Format(buf, style, iterator); err != nil {
		return fmt.Errorf("format code segment: %w", err)
	}
	return nil
}

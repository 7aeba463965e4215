package render

import (
	"html/template"
	"io"

	"gemchat-backend/internal/models"
)

var pageTmpl = template.Must(template.New("chat").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Chat with {{.Name}}</title>
<style>
body { font-family: "Segoe UI", Arial, sans-serif; background: #05101c; color: #fff; margin: 0; }
.chat { max-width: 860px; margin: 24px auto; }
.turn { display: flex; gap: 16px; padding: 16px; border-radius: 8px; margin: 8px 0; }
.avatar { width: 40px; height: 40px; border-radius: 50%; background: #000; display: flex; align-items: center; justify-content: center; flex-shrink: 0; }
.avatar img { width: 30px; }
.chat-text { font-size: 20px; margin: 0 0 8px; white-space: pre-wrap; }
pre { padding: 12px; border-radius: 6px; overflow-x: auto; }
</style>
</head>
<body>
<div class="chat">
{{- if not .Turns}}
<p class="chat-text">No messages yet.</p>
{{- end}}
{{- range .Turns}}
<div class="turn turn-{{.Role}}" style="background: {{.Background}}">
<div class="avatar">{{if .Image}}<img src="{{.Image}}" alt="assistant">{{else}}{{.Initials}}{{end}}</div>
<div class="content">{{.Body}}</div>
</div>
{{- end}}
</div>
</body>
</html>
`))

type pageTurn struct {
	Role       string
	Background template.CSS
	Image      string
	Initials   string
	Body       template.HTML
}

// WritePage renders a whole transcript for userName.
func WritePage(w io.Writer, userName string, chats []models.ChatMessage) error {
	turns := make([]pageTurn, 0, len(chats))
	for _, msg := range chats {
		l := Turn(msg, userName)
		body, err := l.HTML()
		if err != nil {
			return err
		}
		turns = append(turns, pageTurn{
			Role:       l.Role,
			Background: template.CSS(l.Background),
			Image:      l.Avatar.Image,
			Initials:   l.Avatar.Initials,
			Body:       body,
		})
	}

	return pageTmpl.Execute(w, struct {
		Name  string
		Turns []pageTurn
	}{Name: userName, Turns: turns})
}

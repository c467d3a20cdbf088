package callback

import (
	"bytes"
	"html/template"
	"time"

	"github.com/Masterminds/sprig/v3"
)

const pageTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{ .Title }}</title></head>
<body style="font-family: sans-serif; margin: 4em auto; max-width: 36em;">
<h1>{{ .Title }}</h1>
<p>{{ .Message }}</p>
{{- if .Detail }}
<p><code>{{ .Detail | trunc 200 }}</code></p>
{{- end }}
<p><small>{{ .Time | date "2006-01-02 15:04:05 MST" }}</small></p>
</body>
</html>
`

var pages = template.Must(template.New("page").Funcs(sprig.HtmlFuncMap()).Parse(pageTemplate))

type page struct {
	Title   string
	Message string
	Detail  string
	Time    time.Time
}

func renderPage(p page) []byte {
	var buf bytes.Buffer
	if err := pages.Execute(&buf, p); err != nil {
		return []byte(p.Title + "\n" + p.Message + "\n")
	}
	return buf.Bytes()
}

func successPage() []byte {
	return renderPage(page{
		Title:   "Authorization complete",
		Message: "Authorization complete. You can close this window and return to the terminal.",
		Time:    time.Now(),
	})
}

func failurePage(err error) []byte {
	return renderPage(page{
		Title:   "Authorization failed",
		Message: "The authorization server did not return a usable response. Return to the terminal for details.",
		Detail:  err.Error(),
		Time:    time.Now(),
	})
}

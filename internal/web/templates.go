package web

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"path"
)

//go:embed templates/*.tmpl
var tplFS embed.FS

// набор шаблонов по страницам (ключ = имя файла страницы, напр. "invite.tmpl")
type pageTemplates map[string]*template.Template

func parseTemplates() (pageTemplates, error) {
	all, err := fs.Glob(tplFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("web: glob templates: %w", err)
	}

	// layout + конкретная страница
	out := make(pageTemplates)
	for _, f := range all {
		if path.Base(f) == "layout.tmpl" {
			continue
		}
		t := template.New("layout")
		if _, err := t.ParseFS(tplFS, "templates/layout.tmpl", f); err != nil {
			return nil, fmt.Errorf("web: parse %s: %w", f, err)
		}
		out[path.Base(f)] = t
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("web: no page templates in embed FS")
	}
	return out, nil
}

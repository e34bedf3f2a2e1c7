package hocr

import (
	"bytes"
	"embed"
	"fmt"
	"html"
	"sort"
	"strings"
	"text/template"
)

//go:embed templates/hocr.tmpl
var templateFS embed.FS

var tmpl = template.Must(template.New("hocr.tmpl").Funcs(template.FuncMap{
	"lang":      langAttr,
	"pageTitle": pageTitle,
	"lineTitle": lineTitle,
	"wordTitle": wordTitle,
}).ParseFS(templateFS, "templates/hocr.tmpl"))

// Generate renders doc as an hOCR HTML document.
func Generate(doc *Document) ([]byte, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, doc); err != nil {
		return nil, fmt.Errorf("failed to render hOCR: %w", err)
	}
	return buf.Bytes(), nil
}

func langAttr(lang string) string {
	if lang == "" {
		return ""
	}
	return fmt.Sprintf(` lang="%s"`, html.EscapeString(lang))
}

func pageTitle(p Page) string {
	parts := []string{}
	if p.Image != "" {
		parts = append(parts, fmt.Sprintf(`image "%s"`, html.EscapeString(p.Image)))
	}
	parts = append(parts, p.BBox.String(), fmt.Sprintf("ppageno %d", p.Number))
	return strings.Join(parts, "; ")
}

func lineTitle(l Line) string {
	parts := []string{l.BBox.String()}
	if l.Baseline != "" {
		parts = append(parts, "baseline "+l.Baseline)
	}
	keys := make([]string, 0, len(l.Properties))
	for k := range l.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, html.EscapeString(k+" "+l.Properties[k]))
	}
	return strings.Join(parts, "; ")
}

func wordTitle(w Word) string {
	if !w.HasConfidence {
		return w.BBox.String()
	}
	return fmt.Sprintf("%s; x_wconf %d", w.BBox, round(w.Confidence))
}

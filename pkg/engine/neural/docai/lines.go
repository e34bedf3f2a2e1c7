package docai

import (
	"strings"

	"cloud.google.com/go/documentai/apiv1/documentaipb"

	"github.com/gardar/ocrmux/pkg/engine/neural"
	"github.com/gardar/ocrmux/pkg/result"
)

// Lines converts the lines of every page in doc to neural.Lines in a w x h image.
func Lines(doc *documentaipb.Document, w, h int) []neural.Line {
	var lines []neural.Line
	for _, page := range doc.GetPages() {
		for _, line := range page.GetLines() {
			text := cleanText(textFromLayout(line.GetLayout(), doc.GetText()))
			if text == "" {
				continue
			}
			lines = append(lines, neural.Line{
				Polygon:    polygon(line.GetLayout(), page.GetDimension(), w, h),
				Text:       text,
				TokenProbs: tokenProbs(page, line),
			})
		}
	}
	return lines
}

// tokenProbs collects the confidences of the tokens inside line, falling back to the
// line's own confidence.
func tokenProbs(page *documentaipb.Document_Page, line *documentaipb.Document_Page_Line) []float64 {
	var probs []float64
	for _, token := range page.GetTokens() {
		if !contains(line.GetLayout(), token.GetLayout()) {
			continue
		}
		if c := token.GetLayout().GetConfidence(); c > 0 {
			probs = append(probs, float64(c))
		}
	}
	if len(probs) == 0 {
		if c := line.GetLayout().GetConfidence(); c > 0 {
			probs = append(probs, float64(c))
		}
	}
	return probs
}

// polygon scales a layout's bounding polygon to a w x h image. Normalized vertices are
// preferred; pixel vertices are scaled from the page dimension.
func polygon(layout *documentaipb.Document_Page_Layout, dim *documentaipb.Document_Page_Dimension, w, h int) result.Polygon {
	poly := layout.GetBoundingPoly()
	if nv := poly.GetNormalizedVertices(); len(nv) > 0 {
		out := make(result.Polygon, len(nv))
		for i, v := range nv {
			out[i] = result.Point{X: float64(v.GetX()) * float64(w), Y: float64(v.GetY()) * float64(h)}
		}
		return out
	}
	vs := poly.GetVertices()
	if len(vs) == 0 || dim.GetWidth() <= 0 || dim.GetHeight() <= 0 {
		return nil
	}
	sx, sy := float64(w)/float64(dim.GetWidth()), float64(h)/float64(dim.GetHeight())
	out := make(result.Polygon, len(vs))
	for i, v := range vs {
		out[i] = result.Point{X: float64(v.GetX()) * sx, Y: float64(v.GetY()) * sy}
	}
	return out
}

// textFromLayout extracts text from a layout's text anchor segments.
func textFromLayout(layout *documentaipb.Document_Page_Layout, fullText string) string {
	runes := []rune(fullText)
	var sb strings.Builder
	for _, seg := range layout.GetTextAnchor().GetTextSegments() {
		start := min(max(int(seg.GetStartIndex()), 0), len(runes))
		end := min(int(seg.GetEndIndex()), len(runes))
		if start < end {
			sb.WriteString(string(runes[start:end]))
		}
	}
	return sb.String()
}

// contains reports whether the first text segment of child lies within parent's.
func contains(parent, child *documentaipb.Document_Page_Layout) bool {
	ps := parent.GetTextAnchor().GetTextSegments()
	cs := child.GetTextAnchor().GetTextSegments()
	if len(ps) == 0 || len(cs) == 0 {
		return false
	}
	return cs[0].GetStartIndex() >= ps[0].GetStartIndex() && cs[0].GetEndIndex() <= ps[0].GetEndIndex()
}

func cleanText(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	return strings.TrimSpace(strings.ReplaceAll(s, "\n", " "))
}

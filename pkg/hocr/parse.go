package hocr

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// ErrNoPages is returned by Parse when the input has no ocr_page element.
var ErrNoPages = errors.New("no ocr_page elements found in hOCR data")

type kind int

const (
	kindNone kind = iota
	kindPage
	kindArea
	kindParagraph
	kindLine
	kindWord
)

var classKinds = map[string]kind{
	"ocr_page":      kindPage,
	"ocr_carea":     kindArea,
	"ocr_par":       kindParagraph,
	"ocr_line":      kindLine,
	"ocr_header":    kindLine,
	"ocr_caption":   kindLine,
	"ocr_textfloat": kindLine,
	"ocrx_word":     kindWord,
}

// Parse converts hOCR data into a Document. Latin-1 and Windows-1252 documents are
// decoded according to their declared charset.
func Parse(data []byte) (*Document, error) {
	decoded, err := decode(data)
	if err != nil {
		return nil, err
	}
	root, err := html.Parse(bytes.NewReader(decoded))
	if err != nil {
		return nil, fmt.Errorf("failed to parse hOCR: %w", err)
	}

	doc := &Document{Metadata: make(map[string]string)}
	readHead(doc, root)
	for _, n := range nearest(root)[kindPage] {
		doc.Pages = append(doc.Pages, parsePage(n))
	}
	if len(doc.Pages) == 0 {
		return nil, ErrNoPages
	}
	return doc, nil
}

// decode converts data to UTF-8 when its meta charset names a single byte encoding.
func decode(data []byte) ([]byte, error) {
	head := data
	if len(head) > 2048 {
		head = head[:2048]
	}
	lower := bytes.ToLower(head)
	i := bytes.Index(lower, []byte("charset="))
	if i < 0 {
		return data, nil
	}
	rest := lower[i+len("charset="):]
	end := bytes.IndexAny(rest, "\"'; />")
	if end < 0 {
		end = len(rest)
	}

	var enc encoding.Encoding
	switch string(bytes.Trim(rest[:end], "\"'")) {
	case "iso-8859-1", "latin1", "latin-1":
		enc = charmap.ISO8859_1
	case "windows-1252", "cp1252":
		enc = charmap.Windows1252
	default:
		return data, nil
	}
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode hOCR charset: %w", err)
	}
	return out, nil
}

func readHead(doc *Document, root *html.Node) {
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "html":
				if lang := attr(n, "lang"); lang != "" {
					doc.Language = lang
				}
			case "title":
				if n.FirstChild != nil {
					doc.Title = strings.TrimSpace(n.FirstChild.Data)
				}
			case "meta":
				name, content := attr(n, "name"), attr(n, "content")
				switch {
				case content == "":
				case strings.HasPrefix(name, "ocr-"):
					doc.Metadata[name] = content
				case name == "dc.language" && doc.Language == "":
					doc.Language = content
				}
			case "body":
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
}

// classify returns the structural kind of n from its class attribute.
func classify(n *html.Node) kind {
	if n.Type != html.ElementNode {
		return kindNone
	}
	for _, class := range strings.Fields(attr(n, "class")) {
		if k, ok := classKinds[class]; ok {
			return k
		}
	}
	return kindNone
}

// nearest returns the closest structural descendants of n, grouped by kind, without
// descending into them.
func nearest(n *html.Node) map[kind][]*html.Node {
	found := make(map[kind][]*html.Node)
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if k := classify(c); k != kindNone {
				found[k] = append(found[k], c)
				continue
			}
			walk(c)
		}
	}
	walk(n)
	return found
}

func parsePage(n *html.Node) Page {
	props := ParseTitle(attr(n, "title"))
	page := Page{ID: attr(n, "id"), Lang: attr(n, "lang"), BBox: bboxOf(props)}
	if v := props["image"]; len(v) > 0 {
		page.Image = strings.Trim(strings.Join(v, " "), `"`)
	}
	if v := props["ppageno"]; len(v) > 0 {
		page.Number, _ = strconv.Atoi(v[0])
	}

	children := nearest(n)
	for _, c := range children[kindArea] {
		page.Areas = append(page.Areas, parseArea(c))
	}
	for _, c := range children[kindParagraph] {
		page.Paragraphs = append(page.Paragraphs, parseParagraph(c))
	}
	for _, c := range children[kindLine] {
		page.Lines = append(page.Lines, parseLine(c))
	}
	if words := children[kindWord]; len(words) > 0 {
		page.Lines = append(page.Lines, Line{ID: page.ID + "_words", Words: parseWords(words)})
	}
	return page
}

func parseArea(n *html.Node) Area {
	area := Area{ID: attr(n, "id"), Lang: attr(n, "lang"), BBox: bboxOf(ParseTitle(attr(n, "title")))}
	children := nearest(n)
	for _, c := range children[kindParagraph] {
		area.Paragraphs = append(area.Paragraphs, parseParagraph(c))
	}
	for _, c := range children[kindLine] {
		area.Lines = append(area.Lines, parseLine(c))
	}
	area.Words = parseWords(children[kindWord])
	return area
}

func parseParagraph(n *html.Node) Paragraph {
	par := Paragraph{ID: attr(n, "id"), Lang: attr(n, "lang"), BBox: bboxOf(ParseTitle(attr(n, "title")))}
	children := nearest(n)
	for _, c := range children[kindLine] {
		par.Lines = append(par.Lines, parseLine(c))
	}
	par.Words = parseWords(children[kindWord])
	return par
}

func parseLine(n *html.Node) Line {
	props := ParseTitle(attr(n, "title"))
	line := Line{ID: attr(n, "id"), Lang: attr(n, "lang"), BBox: bboxOf(props)}
	if v := props["baseline"]; len(v) > 0 {
		line.Baseline = strings.Join(v, " ")
	}
	for k, v := range props {
		if k == "bbox" || k == "baseline" {
			continue
		}
		if line.Properties == nil {
			line.Properties = make(map[string]string)
		}
		line.Properties[k] = strings.Join(v, " ")
	}
	line.Words = parseWords(nearest(n)[kindWord])
	return line
}

func parseWords(nodes []*html.Node) []Word {
	var words []Word
	for _, n := range nodes {
		props := ParseTitle(attr(n, "title"))
		w := Word{ID: attr(n, "id"), Lang: attr(n, "lang"), BBox: bboxOf(props), Text: textContent(n)}
		if v := props["x_wconf"]; len(v) > 0 {
			if conf, err := strconv.ParseFloat(v[0], 64); err == nil {
				w.Confidence, w.HasConfidence = conf, true
			}
		}
		words = append(words, w)
	}
	return words
}

// ParseTitle splits an hOCR title attribute into properties.
// "bbox 100 200 300 400; x_wconf 95" yields {"bbox": [100 200 300 400], "x_wconf": [95]}.
func ParseTitle(title string) map[string][]string {
	props := make(map[string][]string)
	for _, part := range strings.Split(title, ";") {
		fields := strings.Fields(part)
		if len(fields) > 0 {
			props[fields[0]] = fields[1:]
		}
	}
	return props
}

// ParseBBox extracts the bbox property from a title attribute.
func ParseBBox(title string) (BBox, bool) {
	props := ParseTitle(title)
	if len(props["bbox"]) < 4 {
		return BBox{}, false
	}
	return bboxOf(props), true
}

func bboxOf(props map[string][]string) BBox {
	v := props["bbox"]
	if len(v) < 4 {
		return BBox{}
	}
	var c [4]float64
	for i := range c {
		c[i], _ = strconv.ParseFloat(v[i], 64)
	}
	return BBox{X1: c[0], Y1: c[1], X2: c[2], Y2: c[3]}
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

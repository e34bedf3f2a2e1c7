package result

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Assemble folds merged pages into a DocumentResult in index order.
// Indices must be dense and zero-based.
func Assemble(pages []MergedPage) (DocumentResult, error) {
	sorted := make([]MergedPage, len(pages))
	copy(sorted, pages)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })

	doc := DocumentResult{Pages: sorted, Status: DocumentSuccess}
	for i, p := range sorted {
		if p.Index != i {
			return DocumentResult{}, fmt.Errorf("page indices are not dense: position %d holds page %d", i, p.Index)
		}
		if p.Status != PageOK {
			doc.Status = DocumentDegradedSuccess
		}
	}
	return doc, nil
}

// Text returns the recognized text, one region per line and pages separated by a blank line.
func (d DocumentResult) Text() string {
	pages := make([]string, 0, len(d.Pages))
	for _, p := range d.Pages {
		pages = append(pages, p.Text())
	}
	return strings.Join(pages, "\n\n")
}

// Text returns the page's region texts joined by newlines.
func (p MergedPage) Text() string {
	lines := make([]string, 0, len(p.Regions))
	for _, r := range p.Regions {
		lines = append(lines, r.Text)
	}
	return strings.Join(lines, "\n")
}

// FailedPages returns the indices of pages marked failed-page.
func (d DocumentResult) FailedPages() []int {
	var out []int
	for _, p := range d.Pages {
		if p.Status == PageFailed {
			out = append(out, p.Index)
		}
	}
	return out
}

// MarshalJSON encodes a known confidence as a number and an unknown one as null.
func (c Confidence) MarshalJSON() ([]byte, error) {
	if !c.Known {
		return []byte("null"), nil
	}
	return json.Marshal(c.Value)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (c *Confidence) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*c = Unknown
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*c = Score(v)
	return nil
}

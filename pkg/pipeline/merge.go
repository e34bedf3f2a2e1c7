package pipeline

import (
	"fmt"
	"strings"

	"github.com/gardar/ocrmux/pkg/result"
)

// Policy decides which neural regions may be overridden by classical text.
type Policy string

const (
	// PolicyRegion judges each neural region by its own confidence.
	PolicyRegion Policy = "region"
	// PolicyPage judges all regions of a page by their mean confidence.
	PolicyPage Policy = "page"
)

// ParsePolicy validates a policy name. The empty string means PolicyRegion.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PolicyRegion, nil
	case PolicyRegion, PolicyPage:
		return p, nil
	}
	return "", fmt.Errorf("unknown override policy %q (want region or page)", s)
}

// MergeConfig holds the merge constants.
type MergeConfig struct {
	// OverrideThreshold is the neural confidence below which classical text may replace
	// neural text. Unknown confidences are always below it.
	OverrideThreshold float64 `yaml:"override_threshold"`
	// IoUThreshold is the minimum intersection over union for two regions to overlap.
	IoUThreshold float64 `yaml:"iou_threshold"`
	Policy       Policy  `yaml:"policy"`
}

// DefaultMergeConfig is used for a zero MergeConfig.
var DefaultMergeConfig = MergeConfig{OverrideThreshold: 0.6, IoUThreshold: 0.5, Policy: PolicyRegion}

// Validate checks that both thresholds lie in [0,1] and the policy is known.
func (c MergeConfig) Validate() error {
	if c.OverrideThreshold < 0 || c.OverrideThreshold > 1 {
		return fmt.Errorf("override threshold %v is outside [0,1]", c.OverrideThreshold)
	}
	if c.IoUThreshold <= 0 || c.IoUThreshold > 1 {
		return fmt.Errorf("IoU threshold %v is outside (0,1]", c.IoUThreshold)
	}
	if _, err := ParsePolicy(string(c.Policy)); err != nil {
		return err
	}
	return nil
}

// Merge reconciles the engine results of one w x h page. It is a pure function of its
// arguments.
//
// One successful engine kind: the first successful result of the preferred kind
// (neural) is taken verbatim. Neural and classical both successful: the neural regions
// in reading order are the backbone, and each eligible neural region takes the text of
// the best overlapping classical region when the two disagree. Nothing successful: an
// empty failed page.
func Merge(cfg MergeConfig, results []result.EngineResult, w, h int) result.MergedPage {
	page := result.MergedPage{Width: w, Height: h, Regions: []result.TextRegion{}, Status: result.PageOK}
	if len(results) > 0 {
		page.Index = results[0].PageIndex
	}

	var neural, classical []result.EngineResult
	for _, r := range results {
		if !r.Available() {
			page.Failures = append(page.Failures, result.EngineFailure{Engine: r.Engine, Kind: r.Kind, Reason: r.Err.Error()})
			continue
		}
		if r.Kind == result.KindClassical {
			classical = append(classical, r)
		} else {
			neural = append(neural, r)
		}
	}

	switch {
	case len(neural) == 0 && len(classical) == 0:
		page.Provenance = result.PageNone
		page.Status = result.PageFailed
		return page
	case len(classical) == 0:
		single(&page, neural[0])
	case len(neural) == 0:
		single(&page, classical[0])
	default:
		page.Regions = override(cfg, neural[0].Regions, classical)
		page.Provenance = result.PageMerged
	}
	if len(page.Failures) > 0 {
		page.Status = result.PageDegraded
	}
	return page
}

func single(page *result.MergedPage, r result.EngineResult) {
	prov := result.ProvenanceOf(r.Kind)
	for _, region := range r.Regions {
		region.Provenance = prov
		page.Regions = append(page.Regions, region)
	}
	page.Provenance = result.PageProvenanceOf(r.Kind)
}

func override(cfg MergeConfig, backbone []result.TextRegion, results []result.EngineResult) []result.TextRegion {
	cfg = cfg.withDefaults()
	var candidates []result.TextRegion
	for _, r := range results {
		candidates = append(candidates, r.Regions...)
	}

	ordered := result.ReadingOrder(backbone)
	pageEligible := cfg.Policy == PolicyPage && meanConfidence(ordered).Below(cfg.OverrideThreshold)

	out := make([]result.TextRegion, 0, len(ordered))
	for _, region := range ordered {
		region.Provenance = result.ProvenanceNeural
		eligible := pageEligible
		if cfg.Policy != PolicyPage {
			eligible = region.Confidence.Below(cfg.OverrideThreshold)
		}
		if eligible {
			if c, ok := bestOverlap(region, candidates, cfg.IoUThreshold); ok && !sameText(c.Text, region.Text) {
				region.Text = c.Text
				region.Confidence = c.Confidence
				region.Provenance = result.ProvenanceClassicalOverride
				region.Engines = []result.EngineKind{result.KindNeural, result.KindClassical}
			}
		}
		out = append(out, region)
	}
	return out
}

// bestOverlap returns the candidate with the highest IoU at or above threshold. Ties go
// to the earliest candidate.
func bestOverlap(region result.TextRegion, candidates []result.TextRegion, threshold float64) (result.TextRegion, bool) {
	best, bestIoU := -1, 0.0
	for i, c := range candidates {
		iou := result.IoU(region.Polygon, c.Polygon)
		if iou >= threshold && iou > bestIoU {
			best, bestIoU = i, iou
		}
	}
	if best < 0 {
		return result.TextRegion{}, false
	}
	return candidates[best], true
}

// meanConfidence averages known confidences. No known confidence is unknown.
func meanConfidence(regions []result.TextRegion) result.Confidence {
	var sum float64
	var n int
	for _, r := range regions {
		if r.Confidence.Known {
			sum += r.Confidence.Value
			n++
		}
	}
	if n == 0 {
		return result.Unknown
	}
	return result.Score(sum / float64(n))
}

// sameText compares texts with whitespace runs collapsed.
func sameText(a, b string) bool {
	return strings.Join(strings.Fields(a), " ") == strings.Join(strings.Fields(b), " ")
}

// withDefaults fills the fields whose zero value is invalid. A zero OverrideThreshold
// is kept, it disables overrides of regions with a known confidence. Only the zero
// MergeConfig as a whole stands for DefaultMergeConfig.
func (c MergeConfig) withDefaults() MergeConfig {
	if c == (MergeConfig{}) {
		return DefaultMergeConfig
	}
	if c.IoUThreshold == 0 {
		c.IoUThreshold = DefaultMergeConfig.IoUThreshold
	}
	if c.Policy == "" {
		c.Policy = DefaultMergeConfig.Policy
	}
	return c
}

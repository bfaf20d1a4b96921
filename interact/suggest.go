package interact

import (
	"fmt"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/agnivade/levenshtein"

	"github.com/AngHelll/AutomationFrameworkP/driver"
)

// SuggestSelectors scans a page snapshot for selectors that look close
// to the locator that failed to match, ranked by edit distance. Used
// to enrich not-found errors so a broken check points at the likely
// typo.
func SuggestSelectors(src string, loc driver.Locator, max int) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	if err != nil {
		return nil
	}
	target := normalizeSelector(loc.Value)
	if target == "" {
		return nil
	}

	type candidate struct {
		selector string
		distance int
	}
	seen := map[string]bool{}
	var candidates []candidate
	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		sel := nodeSelector(s)
		if sel == "" || seen[sel] {
			return
		}
		seen[sel] = true
		d := levenshtein.ComputeDistance(target, normalizeSelector(sel))
		if d > len(target)/2+2 {
			return
		}
		candidates = append(candidates, candidate{selector: sel, distance: d})
	})

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].distance != candidates[j].distance {
			return candidates[i].distance < candidates[j].distance
		}
		return candidates[i].selector < candidates[j].selector
	})
	if len(candidates) > max {
		candidates = candidates[:max]
	}
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.selector
	}
	return out
}

// nodeSelector renders a node as the selector a check author would
// write for it: #id first, then tag.classes, then tag[name].
func nodeSelector(s *goquery.Selection) string {
	tag := goquery.NodeName(s)
	switch tag {
	case "", "html", "head", "body", "script", "style", "meta", "link", "title":
		return ""
	}
	if id, ok := s.Attr("id"); ok && id != "" {
		return "#" + id
	}
	if class, ok := s.Attr("class"); ok && strings.TrimSpace(class) != "" {
		return tag + "." + strings.Join(strings.Fields(class), ".")
	}
	if name, ok := s.Attr("name"); ok && name != "" {
		return fmt.Sprintf("%s[name=%q]", tag, name)
	}
	return ""
}

// normalizeSelector strips css sigils so "#submit-btn" and the id
// "submit_btn" compare on their meat.
func normalizeSelector(s string) string {
	s = strings.TrimSpace(s)
	replacer := strings.NewReplacer("#", "", ".", " ", "[", " ", "]", " ", "\"", "", "'", "", "=", " ")
	return strings.Join(strings.Fields(replacer.Replace(s)), " ")
}

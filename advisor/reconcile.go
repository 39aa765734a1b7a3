package advisor

import (
	"strings"

	"canteenadvisor"
)

var (
	reasoningLabels = []string{"推荐理由", "reasoning"}
	tipsLabels      = []string{"饮食建议", "tips"}
)

// Reconciliation is what could be recovered from a generated answer.
type Reconciliation struct {
	Items     []canteenadvisor.FoodItem
	Reasoning string
	Tips      string
}

// Reconciler maps generated text back onto the candidate set.
type Reconciler interface {
	Reconcile(text string, candidates []canteenadvisor.FoodItem) Reconciliation
}

// ResponseReconciler scans generated text line by line. It only ever selects
// items from candidates.
type ResponseReconciler struct{}

type lineKind int

const (
	lineBody lineKind = iota
	lineItem
	lineHeading
)

type section int

const (
	sectionNone section = iota
	sectionReasoning
	sectionTips
	sectionOther
)

func (ResponseReconciler) Reconcile(text string, candidates []canteenadvisor.FoodItem) Reconciliation {
	var (
		items   []canteenadvisor.FoodItem
		seen    = make(map[string]struct{})
		current = sectionNone
		found   = map[section]bool{}
		bodies  = map[section][]string{}
	)

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		kind, value, rest := classify(line)

		switch kind {
		case lineHeading:
			current = headingSection(value)
			if current != sectionOther && found[current] {
				// only the first occurrence of a section is kept
				current = sectionOther
			}
			if current != sectionOther {
				found[current] = true
			}
			if rest != "" {
				bodies[current] = append(bodies[current], rest)
			}
		case lineItem:
			if it, ok := match(value, candidates); ok {
				if _, dup := seen[it.ID]; !dup {
					seen[it.ID] = struct{}{}
					items = append(items, it)
				}
			}
			bodies[current] = append(bodies[current], line)
		default:
			bodies[current] = append(bodies[current], line)
		}
	}

	rec := Reconciliation{
		Items:     items,
		Reasoning: strings.TrimSpace(strings.Join(bodies[sectionReasoning], "\n")),
		Tips:      strings.TrimSpace(strings.Join(bodies[sectionTips], "\n")),
	}
	if rec.Reasoning == "" {
		rec.Reasoning = strings.TrimSpace(text)
	}
	return rec
}

// classify returns a line's kind. For items value is the name fragment; for
// headings value is the label and rest is any text following it on the line.
func classify(line string) (kind lineKind, value, rest string) {
	if label, after, ok := boldHeading(line); ok {
		return lineHeading, label, after
	}
	if body, ok := atxHeading(line); ok {
		label, after := splitLabel(body)
		if label != "" {
			return lineHeading, label, after
		}
	}
	if frag, ok := itemFragment(line); ok {
		return lineItem, frag, ""
	}
	return lineBody, "", ""
}

// atxHeading recognizes markdown "## Label" lines. The hashes must be followed
// by a space, so "#1 pick" stays body text.
func atxHeading(line string) (string, bool) {
	hashes := len(line) - len(strings.TrimLeft(line, "#"))
	if hashes == 0 || hashes > 6 || hashes == len(line) {
		return "", false
	}
	if c := line[hashes]; c != ' ' && c != '\t' {
		return "", false
	}
	return strings.TrimSpace(line[hashes:]), true
}

// boldHeading recognizes "**Label:** text", "**Label**: text" and "**Label**".
func boldHeading(line string) (label, rest string, ok bool) {
	if !strings.HasPrefix(line, "**") {
		return "", "", false
	}
	end := strings.Index(line[2:], "**")
	if end < 0 {
		return "", "", false
	}
	label = trimLabel(line[2 : 2+end])
	if label == "" {
		return "", "", false
	}
	rest = strings.TrimSpace(line[2+end+2:])
	rest = strings.TrimSpace(strings.TrimLeft(rest, ":："))
	return label, rest, true
}

func splitLabel(s string) (label, rest string) {
	if i := strings.IndexAny(s, ":："); i >= 0 {
		sep := len(":")
		if strings.HasPrefix(s[i:], "：") {
			sep = len("：")
		}
		return trimLabel(s[:i]), strings.TrimSpace(s[i+sep:])
	}
	return trimLabel(s), ""
}

func trimLabel(s string) string {
	return strings.TrimSpace(strings.TrimRight(strings.TrimSpace(s), ":："))
}

func headingSection(label string) section {
	switch {
	case labelIn(label, reasoningLabels):
		return sectionReasoning
	case labelIn(label, tipsLabels):
		return sectionTips
	default:
		return sectionOther
	}
}

func labelIn(label string, labels []string) bool {
	for _, l := range labels {
		if strings.EqualFold(label, l) {
			return true
		}
	}
	return false
}

// itemFragment extracts the name fragment from "<digits>. <fragment> - ...".
// A spaced dash takes precedence over a bare one.
func itemFragment(line string) (string, bool) {
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i == 0 || i >= len(line) || line[i] != '.' {
		return "", false
	}
	body := line[i+1:]
	dash := strings.Index(body, " - ")
	if dash < 0 {
		dash = strings.Index(body, "-")
	}
	if dash < 0 {
		return "", false
	}
	frag := strings.Trim(strings.TrimSpace(body[:dash]), "*[]【】 ")
	if frag == "" {
		return "", false
	}
	return frag, true
}

// match returns the first candidate whose name contains the fragment or is contained by it.
func match(fragment string, candidates []canteenadvisor.FoodItem) (canteenadvisor.FoodItem, bool) {
	for _, c := range candidates {
		if c.Name == "" {
			continue
		}
		if strings.Contains(c.Name, fragment) || strings.Contains(fragment, c.Name) {
			return c, true
		}
	}
	return canteenadvisor.FoodItem{}, false
}

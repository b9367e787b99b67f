package models

import "strings"

// Insights is a short generated narrative about one month's performance.
type Insights struct {
	Headline   string   `json:"headline"`
	Highlights []string `json:"highlights"`
	Concerns   []string `json:"concerns"`
}

// Text renders the insights as plain text for a single sheet cell or an email paragraph.
func (i *Insights) Text() string {
	if i == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString(strings.TrimSpace(i.Headline))
	for _, h := range i.Highlights {
		if h = strings.TrimSpace(h); h != "" {
			b.WriteString("\n+ " + h)
		}
	}
	for _, c := range i.Concerns {
		if c = strings.TrimSpace(c); c != "" {
			b.WriteString("\n- " + c)
		}
	}
	return strings.TrimSpace(b.String())
}

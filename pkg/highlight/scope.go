package highlight

import (
	"fmt"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/gobwas/glob"
)

// DefaultSelectors are the inline and text-bearing elements scanned on every
// page.
var DefaultSelectors = []string{
	"p", "div", "span",
	"h1", "h2", "h3", "h4", "h5", "h6",
	"li", "td", "th", "a",
	"strong", "em", "b", "i",
}

// SiteFamily extends the scanned elements on matching hosts.
type SiteFamily struct {
	Name string `yaml:"name" json:"name"`
	// Hosts are glob patterns over the hostname, "." separated: "*" matches
	// one label, "**" any number of labels.
	Hosts []string `yaml:"hosts" json:"hosts"`
	// Selectors are appended to DefaultSelectors for matching hosts.
	Selectors []string `yaml:"selectors" json:"selectors"`
}

// LinkedIn keeps job descriptions in containers the default selectors miss.
var LinkedIn = SiteFamily{
	Name:  "linkedin",
	Hosts: []string{"linkedin.com", "**.linkedin.com"},
	Selectors: []string{
		"[data-job-description]",
		"[data-test-job-description]",
		".job-description",
		".description",
		".content",
		".text",
	},
}

type compiledFamily struct {
	name     string
	hosts    []glob.Glob
	selector cascadia.Selector
}

// Scope picks the element selector for a page.
type Scope struct {
	base     cascadia.Selector
	families []compiledFamily
}

// NewScope compiles the default selector and one selector per family.
func NewScope(families []SiteFamily) (*Scope, error) {
	base, err := cascadia.Compile(strings.Join(DefaultSelectors, ", "))
	if err != nil {
		return nil, fmt.Errorf("failed to compile default selectors: %w", err)
	}

	s := &Scope{base: base}
	for _, fam := range families {
		cf := compiledFamily{name: fam.Name}
		for _, pattern := range fam.Hosts {
			g, err := glob.Compile(strings.ToLower(pattern), '.')
			if err != nil {
				return nil, fmt.Errorf("site %q: invalid host pattern %q: %w", fam.Name, pattern, err)
			}
			cf.hosts = append(cf.hosts, g)
		}
		all := append(append([]string{}, DefaultSelectors...), fam.Selectors...)
		sel, err := cascadia.Compile(strings.Join(all, ", "))
		if err != nil {
			return nil, fmt.Errorf("site %q: invalid selectors: %w", fam.Name, err)
		}
		cf.selector = sel
		s.families = append(s.families, cf)
	}
	return s, nil
}

// Default returns the selector used on unrecognized hosts.
func (s *Scope) Default() cascadia.Selector {
	return s.base
}

// For returns the selector for hostname and the name of the matching site
// family, "" when none matches. The first matching family wins.
func (s *Scope) For(hostname string) (cascadia.Selector, string) {
	host := strings.ToLower(strings.TrimSuffix(hostname, "."))
	if host == "" {
		return s.base, ""
	}
	for _, fam := range s.families {
		for _, g := range fam.hosts {
			if g.Match(host) {
				return fam.selector, fam.name
			}
		}
	}
	return s.base, ""
}

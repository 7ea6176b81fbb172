package scanner

import (
	"fmt"
	"net/url"
	"strings"
)

// Profile describes where chapter text lives on a given site.
type Profile struct {
	Name       string
	Hosts      []string
	Container  string
	Paragraphs string
}

// ParagraphSelector is the selector for paragraphs inside each container match.
func (p Profile) ParagraphSelector() string {
	if paragraphs := strings.TrimSpace(p.Paragraphs); paragraphs != "" {
		return paragraphs
	}
	return "p"
}

// Wikisource is the profile for proofread Wikisource transclusions.
var Wikisource = Profile{
	Name:       "wikisource",
	Hosts:      []string{"wikisource.org"},
	Container:  "div.prp-pages-output",
	Paragraphs: "p",
}

// Registry maps hosts to site profiles and falls back to a default profile.
type Registry struct {
	profiles []Profile
	fallback Profile
}

// NewRegistry builds a registry whose fallback is the given profile.
func NewRegistry(fallback Profile) *Registry {
	return &Registry{fallback: fallback}
}

// Register adds or replaces a profile by name.
func (r *Registry) Register(profile Profile) {
	for i := range r.profiles {
		if r.profiles[i].Name == profile.Name {
			r.profiles[i] = profile
			return
		}
	}
	r.profiles = append(r.profiles, profile)
}

// Resolve picks the profile whose host matches the URL, either exactly or as a parent domain.
func (r *Registry) Resolve(rawURL string) (Profile, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return Profile{}, fmt.Errorf("parse url %s: %w", rawURL, err)
	}
	host := strings.ToLower(parsed.Hostname())

	for _, profile := range r.profiles {
		for _, h := range profile.Hosts {
			h = strings.ToLower(strings.TrimSpace(h))
			if h != "" && (host == h || strings.HasSuffix(host, "."+h)) {
				return profile, nil
			}
		}
	}

	if r.fallback.Container == "" {
		return Profile{}, fmt.Errorf("no site profile for host %s", host)
	}
	return r.fallback, nil
}

package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"BookPublisher/internal/scanner"
)

var (
	// ErrContainerNotFound means the page never produced the profile's content container.
	ErrContainerNotFound = errors.New("content container not found")
	// ErrNoContent means the container held no non-empty paragraphs.
	ErrNoContent = errors.New("no chapter paragraphs found")
)

var inlineSpace = regexp.MustCompile(`[ \t\f\v\x{00a0}]+`)

// ParsedChapter is the text content extracted from one chapter page.
type ParsedChapter struct {
	Title      string
	Paragraphs []string
}

// ParseChapter extracts the document title and paragraph texts inside the profile's container.
func ParseChapter(html string, profile scanner.Profile) (ParsedChapter, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ParsedChapter{}, fmt.Errorf("parse document: %w", err)
	}

	containers := doc.Find(profile.Container)
	if containers.Length() == 0 {
		return ParsedChapter{}, fmt.Errorf("%w: %s", ErrContainerNotFound, profile.Container)
	}

	var paragraphs []string
	containers.Find(profile.ParagraphSelector()).Each(func(_ int, p *goquery.Selection) {
		if text := paragraphText(p); text != "" {
			paragraphs = append(paragraphs, text)
		}
	})
	if len(paragraphs) == 0 {
		return ParsedChapter{}, fmt.Errorf("%w in %s", ErrNoContent, profile.Container)
	}

	return ParsedChapter{
		Title:      strings.TrimSpace(doc.Find("head > title").First().Text()),
		Paragraphs: paragraphs,
	}, nil
}

// paragraphText approximates what a browser reports as rendered text:
// line breaks survive, runs of inline whitespace collapse.
func paragraphText(p *goquery.Selection) string {
	p = p.Clone()
	p.Find("br").ReplaceWithHtml("\n")
	p.Find("script, style, sup.reference").Remove()

	lines := strings.Split(p.Text(), "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(inlineSpace.ReplaceAllString(line, " "))
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

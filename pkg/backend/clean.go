package backend

import (
	"regexp"
	"strings"
)

var htmlTagRe = regexp.MustCompile(`<[^>]+>`)

// navKeywords are navigation and boilerplate fragments seen in Grok's
// HTML-polluted answers. Lines containing any of them are dropped.
var navKeywords = []string{
	"Skip to main content", "Return to the question list", "Send to a friend",
	"Read about how to send as an email", "Search Notes & Queries",
	"Notes and Queries", "guardian.co.uk", "Add your answer", "Last updated:",
	"Home", "Links & services", "Tools", "Contact us", "About us",
	"Current debates", "Related debates",
}

// cleanGrokOutput normalizes Grok's free-text responses: strips HTML tags,
// drops echoed prompt lines and navigation boilerplate, then prefers
// sourced factual lines over the rest.
func cleanGrokOutput(output, prompt string) string {
	output = htmlTagRe.ReplaceAllString(output, "")

	var lines []string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if prompt != "" && strings.Contains(line, strings.TrimSpace(prompt)) {
			continue
		}
		lines = append(lines, line)
	}

	var filtered []string
	for _, line := range lines {
		lower := strings.ToLower(line)
		skip := false
		for _, nav := range navKeywords {
			if strings.Contains(lower, strings.ToLower(nav)) {
				skip = true
				break
			}
		}
		if !skip {
			filtered = append(filtered, line)
		}
	}

	// Prefer lines that state a fact with a source, then any factual line,
	// then whatever survived the filters.
	var answers []string
	for _, line := range filtered {
		lower := strings.ToLower(line)
		if strings.Contains(line, " is ") &&
			(strings.Contains(lower, "source:") || strings.Contains(lower, "(source:")) {
			answers = append(answers, line)
		}
	}
	if len(answers) == 0 {
		for _, line := range filtered {
			if strings.Contains(line, " is ") {
				answers = append(answers, line)
			}
		}
	}
	if len(answers) == 0 {
		answers = filtered
	}
	return strings.TrimSpace(strings.Join(answers, "\n"))
}

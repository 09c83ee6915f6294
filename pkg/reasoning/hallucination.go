package reasoning

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// CitationFinding flags one citation in a response that could not be
// verified against its source.
type CitationFinding struct {
	Citation string `json:"citation"`
	Reason   string `json:"reason"`
}

var (
	bracketCitationRe = regexp.MustCompile(`\[(\d+)\]`)
	urlCitationRe     = regexp.MustCompile(`https?://\S+`)
)

// minKeywordOverlap is the number of shared words below which a cited page
// is considered unrelated to the claim.
const minKeywordOverlap = 3

// CitationChecker verifies citations in a response: bracketed references
// are flagged as unverifiable, URLs are fetched and compared to the claim by
// keyword overlap.
type CitationChecker struct {
	client *http.Client
	logger *slog.Logger
}

func NewCitationChecker(client *http.Client) *CitationChecker {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &CitationChecker{
		client: client,
		logger: slog.Default().With("component", "reasoning.citations"),
	}
}

// Check inspects every citation in the response. It never fails: fetch
// errors become findings.
func (c *CitationChecker) Check(ctx context.Context, response string) []CitationFinding {
	var findings []CitationFinding

	for _, m := range bracketCitationRe.FindAllStringSubmatch(response, -1) {
		findings = append(findings, CitationFinding{
			Citation: "[" + m[1] + "]",
			Reason:   "Bracketed citation cannot be verified without mapping to a source.",
		})
	}

	responseWords := wordSet(response)
	for _, url := range urlCitationRe.FindAllString(response, -1) {
		if f, ok := c.checkURL(ctx, url, responseWords); ok {
			findings = append(findings, f)
		}
	}
	return findings
}

func (c *CitationChecker) checkURL(ctx context.Context, url string, claimWords map[string]struct{}) (CitationFinding, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return CitationFinding{Citation: url, Reason: "Error retrieving cited URL: " + err.Error()}, true
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return CitationFinding{Citation: url, Reason: "Error retrieving cited URL: " + err.Error()}, true
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return CitationFinding{Citation: url, Reason: fmt.Sprintf("URL returned status %d", resp.StatusCode)}, true
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return CitationFinding{Citation: url, Reason: "Error retrieving cited URL: " + err.Error()}, true
	}

	overlap := 0
	for word := range wordSet(string(body)) {
		if _, ok := claimWords[word]; ok {
			overlap++
			if overlap >= minKeywordOverlap {
				return CitationFinding{}, false
			}
		}
	}
	return CitationFinding{Citation: url, Reason: "Low keyword overlap between claim and cited source."}, true
}

func wordSet(text string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, w := range strings.Fields(strings.ToLower(text)) {
		out[w] = struct{}{}
	}
	return out
}

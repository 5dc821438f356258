package llm

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"

	"github.com/agnivade/levenshtein"
)

// credentialPattern describes the expected shape of a provider credential.
// This is a format check only, not a liveness check: it catches pasted
// fragments and placeholder values before any request is made.
type credentialPattern struct {
	re     *regexp.Regexp
	domain string
}

func (p credentialPattern) check(credential string) error {
	if credential == "" {
		return ErrEmptyCredential
	}
	if !p.re.MatchString(credential) {
		return &ConstructionError{
			Field:  KeyCredential,
			Value:  redactSecret(credential),
			Domain: p.domain,
		}
	}
	return nil
}

var (
	openAICredentialPattern = credentialPattern{
		re:     regexp.MustCompile(`^sk-[A-Za-z0-9_-]{20,}$`),
		domain: `"sk-" prefix followed by at least 20 key characters`,
	}
	anthropicCredentialPattern = credentialPattern{
		re:     regexp.MustCompile(`^sk-ant-[A-Za-z0-9_-]{20,}$`),
		domain: `"sk-ant-" prefix followed by at least 20 key characters`,
	}
	googleCredentialPattern = credentialPattern{
		re:     regexp.MustCompile(`^[A-Za-z0-9_-]{20,}$`),
		domain: "at least 20 key characters",
	}
)

// checkSupportedModel verifies the model against the provider's published
// set. Unknown models get a nearest-match suggestion when one is close
// enough to look like a typo.
func checkSupportedModel(model string, supported []string) error {
	for _, m := range supported {
		if m == model {
			return nil
		}
	}

	domain := fmt.Sprintf("one of %v", supported)
	if suggestion := closestMatch(model, supported); suggestion != "" {
		domain = fmt.Sprintf("one of %v (closest match: %q)", supported, suggestion)
	}
	return &ConstructionError{Field: KeyModel, Value: model, Domain: domain}
}

// closestMatch returns the candidate with the smallest edit distance from
// input, or "" when nothing is within a third of the input's length.
// Sorting keeps the pick deterministic across map-ordered callers.
func closestMatch(input string, candidates []string) string {
	if input == "" || len(candidates) == 0 {
		return ""
	}

	sorted := append([]string(nil), candidates...)
	sort.Strings(sorted)

	best := ""
	bestDist := len(input)/3 + 1
	for _, c := range sorted {
		if d := levenshtein.ComputeDistance(input, c); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

// validateEndpoint checks that an endpoint is an absolute http(s) URL with a
// host. The normalized form is returned so trailing slashes don't produce
// distinct cache keys.
func validateEndpoint(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", &ConstructionError{Field: KeyEndpoint, Value: endpoint, Domain: fieldDomains[KeyEndpoint]}
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", &ConstructionError{Field: KeyEndpoint, Value: endpoint, Domain: fieldDomains[KeyEndpoint]}
	}
	return u.String(), nil
}

// redactSecret masks a credential for inclusion in error messages so typed
// errors stay safe to log. Short values are fully masked.
func redactSecret(secret string) string {
	if len(secret) <= 8 {
		return "********"
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}

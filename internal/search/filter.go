// Package search - filter.go provides source-quality filtering and ranking of
// discovered results.
package search

import (
	"net/url"
	"sort"
	"strings"

	"github.com/jonathan/deep-search/internal/types"
)

// FilterResults removes duplicate and low-value results, then orders the rest
// by source priority. The relative order of equally ranked results is kept.
func FilterResults(results []types.SearchResult, preferAcademic bool) []types.SearchResult {
	seen := make(map[string]bool)
	var filtered []types.SearchResult

	for _, result := range results {
		key := normalizeURL(result.URL)
		if key == "" || seen[key] {
			continue
		}
		if IsLowValueSource(result.URL) {
			continue
		}
		seen[key] = true
		filtered = append(filtered, result)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return AssignSourcePriority(filtered[i].URL, preferAcademic) > AssignSourcePriority(filtered[j].URL, preferAcademic)
	})
	return filtered
}

// IsLowValueSource checks if a URL is from a platform that rarely yields
// extractable factual content.
func IsLowValueSource(urlStr string) bool {
	lowValueDomains := []string{
		"facebook.com",
		"instagram.com",
		"tiktok.com",
		"pinterest.com",
		"x.com",
		"twitter.com",
		"youtube.com",
		"linkedin.com",
	}

	domain := extractDomainFromURL(urlStr)
	for _, low := range lowValueDomains {
		if domain == low || strings.HasSuffix(domain, "."+low) {
			return true
		}
	}
	return false
}

// AssignSourcePriority returns a priority score based on the source domain.
// Academic and institutional sources score highest when preferAcademic is set.
func AssignSourcePriority(urlStr string, preferAcademic bool) float64 {
	domain := strings.ToLower(extractDomainFromURL(urlStr))
	if domain == "" {
		return 0
	}

	if preferAcademic {
		academicDomains := []string{
			"arxiv.org", "nature.com", "sciencedirect.com", "springer.com",
			"jstor.org", "pubmed.ncbi.nlm.nih.gov", "acm.org", "ieee.org",
		}
		for _, academic := range academicDomains {
			if domain == academic || strings.HasSuffix(domain, "."+academic) {
				return 0.95
			}
		}
		if strings.HasSuffix(domain, ".edu") || strings.HasSuffix(domain, ".gov") {
			return 0.9
		}
	}

	// Reference sites extract reliably.
	referenceDomains := []string{"wikipedia.org", "britannica.com", "reuters.com", "apnews.com"}
	for _, reference := range referenceDomains {
		if domain == reference || strings.HasSuffix(domain, "."+reference) {
			return 0.8
		}
	}

	return 0.5
}

// normalizeURL reduces a URL to a dedupe key: lowercase host without www,
// plus the path with any trailing slash removed.
func normalizeURL(urlStr string) string {
	if urlStr == "" {
		return ""
	}
	parsed, err := url.Parse(urlStr)
	if err != nil || parsed.Host == "" {
		return ""
	}

	host := strings.ToLower(strings.TrimPrefix(parsed.Host, "www."))
	path := strings.TrimSuffix(parsed.Path, "/")
	return host + path
}

// extractDomainFromURL extracts the domain from a URL
func extractDomainFromURL(urlStr string) string {
	if urlStr == "" {
		return ""
	}

	// Prepend scheme if missing
	if !strings.Contains(urlStr, "://") {
		urlStr = "https://" + urlStr
	}

	parsed, err := url.Parse(urlStr)
	if err != nil {
		return ""
	}

	host := parsed.Host
	host = strings.TrimPrefix(host, "www.")

	return host
}

// Package tagnorm normalizes free-text tags (classifier output, user
// input, series-derived tags) into the canonical form stored in the Tag
// table, and derives the file signature from a normalized tag set.
package tagnorm

import (
	"regexp"
	"sort"
	"strings"
)

var (
	collapseSpace = regexp.MustCompile(`[\s_]+`)
	stripPunct    = regexp.MustCompile(`[^a-z0-9: -]+`)
)

// Normalize lowercases s, collapses runs of whitespace/underscore into a
// single hyphen, and strips punctuation other than the colon used by
// system tags (series:<slug>) and dashes. Normalize is idempotent:
// Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = collapseSpace.ReplaceAllString(s, "-")
	s = stripPunct.ReplaceAllString(s, "")
	s = strings.Trim(s, "-")
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	return s
}

// Slugify turns an entity name into the slug used by series:<slug> tags:
// lowercase, "&" becomes "and", anything non-alphanumeric becomes "-",
// runs of "-" collapse to one.
func Slugify(entity string) string {
	s := strings.ToLower(strings.TrimSpace(entity))
	s = strings.ReplaceAll(s, "&", "and")
	s = regexp.MustCompile(`[^a-z0-9]+`).ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	return s
}

// SeriesTag builds the synthetic "series:<slug>" tag for an entity.
func SeriesTag(entity string) string {
	return "series:" + Slugify(entity)
}

// Signature builds a file's tag signature: normalize every tag, dedupe,
// sort, and colon-join. The result is the file's identity key for
// llm-sourced files (spec invariant: tag signature uniqueness).
func Signature(tags []string) (normalized []string, signature string) {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		n := Normalize(t)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out, strings.Join(out, ":")
}

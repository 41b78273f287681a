package narrative

import "strings"

// The scan is deliberately dumb substring matching; the narrative comes
// from a language model and has no stable structure to parse.
var issueKeywords = []string{
	"issue", "problem", "fail", "suspicious", "error", "warning", "⚠️", "❌",
}

var positiveKeywords = []string{
	"none detected", "no issues", "perfect", "healthy", "working well",
	"no problems", "perfect scores", "all clear", "success", "passing",
	"legitimate",
}

// HasIssueIndicators reports whether the text mentions any issue keyword.
func HasIssueIndicators(text string) bool {
	lower := strings.ToLower(text)
	for _, keyword := range issueKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

// HasPositiveIndicators reports whether the text contains positive
// framing. Positive framing wins over issue keywords: a narrative saying
// "no issues detected" must not be flagged for containing "issue".
func HasPositiveIndicators(text string) bool {
	lower := strings.ToLower(text)
	for _, keyword := range positiveKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

// IndicatesIssue combines both scans with the positive-override rule.
func IndicatesIssue(text string) bool {
	if HasPositiveIndicators(text) {
		return false
	}
	return HasIssueIndicators(text)
}

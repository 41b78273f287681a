package narrative

import "strings"

var sectionHeadings = []string{"Overall", "Authentication", "Source", "Issues"}

var keyLineKeywords = []string{"pass", "fail", "issue", "recommend", "should", "update"}

var bulletPrefixes = []string{"•", "-", "*", "1.", "2.", "3."}

// ExtractRecommendations pulls the recommendation bullet points out of a
// free-form analysis narrative. Lines following a "recommendation" or
// "action" heading are collected until the next section heading. When no
// such section exists, the last few lines mentioning a key term are
// returned instead, so the digest always has something actionable.
func ExtractRecommendations(text string) string {
	lines := strings.Split(text, "\n")

	var recommendations []string
	inSection := false
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		lower := strings.ToLower(line)
		if strings.Contains(lower, "recommendation") || strings.Contains(lower, "action") {
			inSection = true
			continue
		}
		if !inSection || line == "" {
			continue
		}
		if hasAnyPrefix(line, sectionHeadings) {
			break
		}
		if hasAnyPrefix(line, bulletPrefixes) {
			recommendations = append(recommendations, "  "+line)
		} else {
			recommendations = append(recommendations, "  • "+line)
		}
	}
	if len(recommendations) > 0 {
		return strings.Join(recommendations, "\n")
	}

	var keyLines []string
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		lower := strings.ToLower(line)
		for _, keyword := range keyLineKeywords {
			if strings.Contains(lower, keyword) {
				keyLines = append(keyLines, line)
				break
			}
		}
	}
	if len(keyLines) == 0 {
		return "See detailed analysis above."
	}
	if len(keyLines) > 3 {
		keyLines = keyLines[len(keyLines)-3:]
	}
	for i, line := range keyLines {
		keyLines[i] = "  • " + line
	}
	return strings.Join(keyLines, "\n")
}

func hasAnyPrefix(line string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

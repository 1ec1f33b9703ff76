package helpers

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	urlPattern   = regexp.MustCompile(`(?i)\b(?:https?://|www\.)\S+`)
	spacePattern = regexp.MustCompile(`[ \t]+`)
)

// StripURLs removes links from user text and tidies the whitespace left
// behind.
func StripURLs(s string) string {
	s = urlPattern.ReplaceAllString(s, "")
	s = spacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// CleanID trims spaces and surrounding quotes clients sometimes send with
// path ids.
func CleanID(id string) string {
	return strings.Trim(strings.TrimSpace(id), "\"'")
}

// ParsePagination reads limit/offset, clamping limit to [1, max].
func ParsePagination(limitStr, offsetStr string, def, max int) (int, int, bool) {
	limit, offset := def, 0
	if limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil || n <= 0 {
			return 0, 0, false
		}
		limit = n
	}
	if limit > max {
		limit = max
	}
	if offsetStr != "" {
		n, err := strconv.Atoi(offsetStr)
		if err != nil || n < 0 {
			return 0, 0, false
		}
		offset = n
	}
	return limit, offset, true
}

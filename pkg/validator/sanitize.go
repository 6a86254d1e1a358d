package validator

import (
	"net/url"
	"regexp"
	"strings"
)

var traversalPattern = regexp.MustCompile(`(^|[/\\])\.\.([/\\]|$)`)

// decodeStages returns s and every successive percent-decoding of it,
// up to a bound, so a caller can inspect each encoding layer rather
// than only the fully-decoded (or only the raw) form.
func decodeStages(s string) []string {
	stages := []string{s}
	cur := s
	for i := 0; i < 4; i++ {
		next, err := url.QueryUnescape(cur)
		if err != nil || next == cur {
			break
		}
		stages = append(stages, next)
		cur = next
	}
	return stages
}

// DetectPathTraversal reports whether s contains a ".." segment at
// any percent-decoding depth, including doubly- or triply-encoded
// payloads.
func DetectPathTraversal(s string) bool {
	for _, stage := range decodeStages(s) {
		if traversalPattern.MatchString(stage) {
			return true
		}
	}
	return false
}

// SanitizePath fully decodes s and drops every "." and ".." segment,
// returning a path guaranteed to carry no parent-directory reference.
func SanitizePath(s string) string {
	stages := decodeStages(s)
	decoded := strings.ReplaceAll(stages[len(stages)-1], "\\", "/")

	parts := strings.Split(decoded, "/")
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" || p == "." || p == ".." {
			continue
		}
		kept = append(kept, p)
	}
	return strings.Join(kept, "/")
}

// internal/mailbox/links.go
package mailbox

import (
	"regexp"
	"strings"
)

// linkPatterns are tried in order; the first pattern with any match wins.
var linkPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)https?://[^\s<>"]+(?:verify|confirm|activate|validation)[^\s<>"]*`),
	regexp.MustCompile(`(?i)https?://[^\s<>"]+[?&](?:token|code|key)=[^\s<>"&]+`),
	regexp.MustCompile(`(?i)https?://[^\s<>"]+/(?:verify|confirm|activate)/[^\s<>"]+`),
}

// ExtractLink finds the verification link in a message body.
func ExtractLink(body string) (string, bool) {
	for _, re := range linkPatterns {
		if m := re.FindString(body); m != "" {
			return strings.TrimRight(m, ".,;:)"), true
		}
	}
	return "", false
}

package sanitize

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	bodyPolicyOnce sync.Once
	bodyPolicy     *bluemonday.Policy
)

// Text escapes a plain-text field such as a title or a search term.
func Text(input string) string {
	return html.EscapeString(strings.TrimSpace(input))
}

// Body sanitizes announcement body text, which may carry rich formatting
// produced by the composer.
func Body(input string) string {
	value := strings.TrimSpace(input)
	if value == "" {
		return ""
	}
	return getBodyPolicy().Sanitize(value)
}

func getBodyPolicy() *bluemonday.Policy {
	bodyPolicyOnce.Do(func() {
		policy := bluemonday.UGCPolicy()
		policy.AllowElements("p", "pre", "code", "blockquote")
		bodyPolicy = policy
	})

	return bodyPolicy
}

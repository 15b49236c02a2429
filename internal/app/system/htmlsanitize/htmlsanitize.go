// Package htmlsanitize cleans operator-supplied HTML such as the dashboard
// footer. It uses bluemonday to strip anything beyond inline formatting and links.
package htmlsanitize

import (
	"html/template"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	policy     *bluemonday.Policy
	policyOnce sync.Once
)

// getPolicy returns the shared footer policy, creating it on first use.
func getPolicy() *bluemonday.Policy {
	policyOnce.Do(func() {
		policy = bluemonday.NewPolicy()
		policy.AllowStandardURLs()
		policy.AllowAttrs("href").OnElements("a")
		policy.RequireNoFollowOnLinks(true)
		policy.AddTargetBlankToFullyQualifiedLinks(true)
		policy.AllowElements("p", "span", "br", "strong", "b", "em", "i", "small", "u")
		policy.AllowAttrs("class").OnElements("p", "span", "a")
	})
	return policy
}

// Sanitize removes everything except inline formatting and safe links.
func Sanitize(html string) string {
	if html == "" {
		return ""
	}
	return getPolicy().Sanitize(html)
}

// Footer prepares footer content for templates. Plain text is escaped and
// kept on its lines; HTML is sanitized.
func Footer(content string) template.HTML {
	content = strings.TrimSpace(content)
	if content == "" {
		return ""
	}
	if !strings.Contains(content, "<") || !strings.Contains(content, ">") {
		escaped := template.HTMLEscapeString(content)
		return template.HTML(strings.ReplaceAll(escaped, "\n", "<br>"))
	}
	return template.HTML(Sanitize(content))
}

package graph

import (
	"fmt"
	"strings"
	"unicode"
)

// maxSlugLen bounds the slug portion of a derived filename.
const maxSlugLen = 64

// Slugify derives a Markdown filename from a node id and title:
// "<id>_<slug>.md" where slug is the lowercased title with every
// non-alphanumeric run collapsed to a single underscore, trimmed of
// leading/trailing underscores, and truncated to maxSlugLen.
func Slugify(id int, title string) string {
	var b strings.Builder
	prevUnderscore := false
	for _, r := range strings.ToLower(title) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			prevUnderscore = false
		default:
			if !prevUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				prevUnderscore = true
			}
		}
	}
	slug := strings.Trim(b.String(), "_")
	if len(slug) > maxSlugLen {
		slug = strings.Trim(slug[:maxSlugLen], "_")
	}
	if slug == "" {
		slug = "untitled"
	}
	return fmt.Sprintf("%d_%s.md", id, slug)
}

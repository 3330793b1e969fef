package sanitize

import (
	"regexp"
	"strings"
)

var reSpaces = regexp.MustCompile(`\s+`)

// NormalizeName trims and collapses inner whitespace ("  Acme   Ltd " -> "Acme Ltd").
// Customer upserts and lead-source duplicate checks key on the normalized form.
func NormalizeName(s string) string {
	return reSpaces.ReplaceAllString(strings.TrimSpace(s), " ")
}

// Summary cuts s at a word boundary for list previews.
func Summary(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	i := max
	for i > 0 && r[i] != ' ' {
		i--
	}
	if i <= 0 {
		i = max
	}
	return strings.TrimRight(string(r[:i]), " ") + "…"
}

// PhoneNumber renders the digits of a phone as xxx-xxx-xxxx; shorter numbers keep fewer groups.
func PhoneNumber(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	n := b.String()
	switch {
	case n == "":
		return ""
	case len(n) <= 3:
		return n
	case len(n) <= 6:
		return n[:3] + "-" + n[3:]
	default:
		return n[:3] + "-" + n[3:6] + "-" + n[6:]
	}
}

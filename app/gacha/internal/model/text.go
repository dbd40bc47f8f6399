package model

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeText 小写、去变音符号，非字母数字折叠为单个空格
func NormalizeText(s string) string {
	// transform.Chain 有内部状态，不能跨 goroutine 复用
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))
	stripped, _, err := transform.String(t, strings.ToLower(s))
	if err != nil {
		stripped = strings.ToLower(s)
	}

	var b strings.Builder
	b.Grow(len(stripped))
	space := false
	for _, r := range stripped {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
			continue
		}
		space = true
	}
	return b.String()
}

var unknownAnimeNames = map[string]struct{}{
	NormalizeText(DefaultAnimeName): {},
	"unknown":                       {},
	"anime desconocido":             {},
	"desconocido":                   {},
}

// HasKnownAnime 作品名不是占位值
func HasKnownAnime(anime string) bool {
	n := NormalizeText(anime)
	if n == "" {
		return false
	}
	_, unknown := unknownAnimeNames[n]
	return !unknown
}

// TextMatches 双向包含即视为匹配
func TextMatches(candidate, query string) bool {
	c, q := NormalizeText(candidate), NormalizeText(query)
	if c == "" || q == "" {
		return false
	}
	return strings.Contains(c, q) || strings.Contains(q, c)
}

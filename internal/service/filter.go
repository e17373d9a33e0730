package service

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// denylist holds the redacted terms. Matching is word-boundary based and
// accent-insensitive; see Sanitize.
var denylist = []string{
	"stupid",
	"idiot",
	"dumb",
	"ass",
}

// reservedNames are usernames (and username substrings) that would let a
// visitor impersonate the server or a moderator.
var reservedNames = []string{
	"admin",
	"administrator",
	"system",
	"mod",
	"moderator",
	"owner",
	"server",
	"anonchat",
}

// FilterService redacts denylisted terms from chat content and rejects
// reserved usernames. It is stateless and safe for concurrent use.
type FilterService struct{}

func NewFilterService() *FilterService {
	return &FilterService{}
}

// Sanitize replaces each denylisted word with asterisks of the same length.
// Matching runs against a normalized copy of the input (accents stripped,
// lowercased, punctuation dropped) so that "Stûpid" or "i-d-i-o-t" style
// evasions are caught, but the replacement is applied to the original
// string: casing and length outside redacted spans are preserved.
func (f *FilterService) Sanitize(input string) string {
	if strings.TrimSpace(input) == "" {
		return ""
	}

	orig := []rune(input)
	normRunes, origIdx := normalizeMapped(orig)
	normStr := string(normRunes)

	redact := make([]bool, len(orig))
	for _, word := range denylist {
		for _, span := range wordSpans(normStr, word) {
			// Map the normalized match back onto the original runes and
			// star out the whole original span, interior punctuation
			// included.
			from := origIdx[span[0]]
			to := origIdx[span[1]-1]
			for i := from; i <= to; i++ {
				redact[i] = true
			}
		}
	}

	var b strings.Builder
	b.Grow(len(input))
	for i, r := range orig {
		if redact[i] {
			b.WriteByte('*')
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsValidUsername reports whether a display name is acceptable. Names whose
// normalized form is empty, equals a reserved name, or merely contains one
// as a substring ("Admin123", "super_mod") are rejected; callers substitute
// a generated guest name rather than failing the join.
func (f *FilterService) IsValidUsername(name string) bool {
	normalized := f.normalize(name)
	if normalized == "" {
		return false
	}
	for _, reserved := range reservedNames {
		if strings.Contains(normalized, reserved) {
			return false
		}
	}
	return true
}

// normalize lowercases, strips accents and punctuation, and collapses
// whitespace. Used for reserved-name checks where positional mapping back
// to the original is not needed.
func (f *FilterService) normalize(input string) string {
	normRunes, _ := normalizeMapped([]rune(input))
	fields := strings.Fields(string(normRunes))
	return strings.Join(fields, " ")
}

// normalizeMapped produces the normalized rune sequence of orig together
// with, for each normalized rune, the index of the original rune it came
// from. Normalized runes are drawn from [a-z0-9 ] only, so byte offsets
// into the resulting string equal rune offsets.
func normalizeMapped(orig []rune) ([]rune, []int) {
	normRunes := make([]rune, 0, len(orig))
	origIdx := make([]int, 0, len(orig))
	for i, r := range orig {
		// NFD splits precomposed characters into base + combining marks.
		for _, dr := range norm.NFD.String(string(r)) {
			if unicode.Is(unicode.Mn, dr) {
				continue // accent mark
			}
			lr := unicode.ToLower(dr)
			switch {
			case lr >= 'a' && lr <= 'z', lr >= '0' && lr <= '9':
				normRunes = append(normRunes, lr)
				origIdx = append(origIdx, i)
			case unicode.IsSpace(lr):
				normRunes = append(normRunes, ' ')
				origIdx = append(origIdx, i)
			}
			// everything else (punctuation, symbols) is dropped
		}
	}
	return normRunes, origIdx
}

// wordSpans returns the [start, end) offsets of every word-boundary match
// of word in s. s must already be normalized to [a-z0-9 ].
func wordSpans(s, word string) [][2]int {
	var spans [][2]int
	for start := 0; ; {
		idx := strings.Index(s[start:], word)
		if idx < 0 {
			break
		}
		from := start + idx
		to := from + len(word)
		beforeOK := from == 0 || !isWordChar(s[from-1])
		afterOK := to == len(s) || !isWordChar(s[to])
		if beforeOK && afterOK {
			spans = append(spans, [2]int{from, to})
		}
		start = from + 1
	}
	return spans
}

func isWordChar(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}

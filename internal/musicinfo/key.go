package musicinfo

import (
	"strconv"
	"strings"

	"golang.org/x/text/cases"
)

// SchemaVersion tags the record shape and key scheme. Bump it whenever
// either changes; entries written under an older version are never read.
const SchemaVersion = "v2"

// DeriveKey maps an identity to its cache key. Fields are compared after
// trimming, collapsing inner whitespace and case folding.
func DeriveKey(id Identity) string {
	return "art_" + fieldHash(id.Artist) +
		"_alb_" + fieldHash(id.Album) +
		"_trk_" + fieldHash(id.Track)
}

// NormalizeField is the canonical form of an identity field. A Caser keeps
// state between calls, so each call gets its own.
func NormalizeField(s string) string {
	return cases.Fold().String(strings.Join(strings.Fields(s), " "))
}

// fieldHash is a 31-multiplier rolling hash over the normalized field,
// wrapping at 32 bits, rendered in base 36.
func fieldHash(s string) string {
	var h int32
	for _, r := range NormalizeField(s) {
		h = h*31 + int32(r)
	}
	v := int64(h)
	if v < 0 {
		v = -v
	}
	return strconv.FormatInt(v, 36)
}

package musicinfo

import (
	"regexp"
	"strings"
)

// Featuring credits, in parentheses/brackets or trailing the name.
var (
	featuringGroup    = regexp.MustCompile(`(?i)\s*[\(\[]\s*(?:feat\.?|ft\.?|featuring)\s+[^\)\]]+[\)\]]`)
	featuringTrailing = regexp.MustCompile(`(?i)\s+(?:feat\.?|ft\.?|featuring)\s+.+$`)
)

// Channel-style suffixes that leak into artist tags of ripped tracks.
var (
	vevoSuffix  = regexp.MustCompile(`(?i)vevo$`)
	topicSuffix = regexp.MustCompile(`(?i)\s*-\s*topic$`)
)

// SearchName cleans an artist tag into the term sent to catalog searches.
// Falls back to the trimmed input when cleaning would leave nothing.
func SearchName(artist string) string {
	raw := strings.TrimSpace(artist)

	name := featuringGroup.ReplaceAllString(raw, "")
	name = featuringTrailing.ReplaceAllString(name, "")
	name = topicSuffix.ReplaceAllString(name, "")
	name = vevoSuffix.ReplaceAllString(strings.TrimSpace(name), "")
	name = strings.Join(strings.Fields(name), " ")

	if name == "" {
		return raw
	}
	return name
}

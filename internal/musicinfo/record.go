package musicinfo

import (
	"fmt"
	"strings"
)

const (
	maxGenres = 3

	defaultDescription  = "No description is available for this artist yet."
	defaultRecentIssues = "No recent news."
)

// Valid reports whether the record can be cached and displayed.
func (r Record) Valid() bool {
	return strings.TrimSpace(r.Artist.GroupName) != ""
}

// Normalize fills every missing sub-field of rec with a safe default so the
// result always matches the record schema. id supplies the group name when
// the record has none.
func Normalize(rec Record, id Identity) Record {
	out := Record{Error: strings.TrimSpace(rec.Error)}

	a := rec.Artist
	out.Artist = ArtistInfo{
		GroupName:    strings.TrimSpace(a.GroupName),
		Description:  strings.TrimSpace(a.Description),
		RecentIssues: strings.TrimSpace(a.RecentIssues),
		ImageURL:     strings.TrimSpace(a.ImageURL),
		Members:      make([]MemberRef, 0, len(a.Members)),
	}
	if out.Artist.GroupName == "" {
		out.Artist.GroupName = strings.TrimSpace(id.Artist)
	}
	if out.Artist.Description == "" {
		out.Artist.Description = defaultDescription
	}
	if out.Artist.RecentIssues == "" {
		out.Artist.RecentIssues = defaultRecentIssues
	}

	for _, m := range a.Members {
		name := strings.TrimSpace(m.Name)
		if name == "" {
			continue
		}
		keyword := strings.TrimSpace(m.NamuWikiKeyword)
		if keyword == "" {
			keyword = name
		}
		out.Artist.Members = append(out.Artist.Members, MemberRef{Name: name, NamuWikiKeyword: keyword})
	}

	if s := a.Spotify; s != nil {
		out.Artist.Spotify = &SpotifyStats{
			Genres:     capGenres(s.Genres),
			Followers:  max(s.Followers, 0),
			Popularity: min(max(s.Popularity, 0), 100),
			URL:        strings.TrimSpace(s.URL),
		}
	}

	out.Track.MediaAppearances = make([]string, 0, len(rec.Track.MediaAppearances))
	for _, m := range rec.Track.MediaAppearances {
		if m = strings.TrimSpace(m); m != "" {
			out.Track.MediaAppearances = append(out.Track.MediaAppearances, m)
		}
	}

	return out
}

// Fallback builds the minimal record used when the text provider fails.
func Fallback(id Identity, cause error) Record {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	artist := strings.TrimSpace(id.Artist)
	return Record{
		Artist: ArtistInfo{
			GroupName:    artist,
			Description:  fmt.Sprintf("Something went wrong while loading information about %s.", artist),
			Members:      []MemberRef{},
			RecentIssues: "Recent news could not be loaded.",
		},
		Track: TrackInfo{MediaAppearances: []string{}},
		Error: msg,
	}
}

// Merge applies a catalog partial to the record. Statistics are only taken
// from partials that carry them.
func (r *Record) Merge(p Partial) {
	if p.ImageURL == "" {
		return
	}
	r.Artist.ImageURL = p.ImageURL
	if p.HasStats {
		r.Artist.Spotify = &SpotifyStats{
			Genres:     capGenres(p.Genres),
			Followers:  p.Followers,
			Popularity: p.Popularity,
			URL:        p.URL,
		}
	}
}

func capGenres(genres []string) []string {
	out := make([]string, 0, min(len(genres), maxGenres))
	for _, g := range genres {
		if len(out) == maxGenres {
			break
		}
		if g = strings.TrimSpace(g); g != "" {
			out = append(out, g)
		}
	}
	return out
}

// Package musicinfo holds the enrichment domain: track identities, the
// music-info record and its schema rules, cache key derivation, and the
// catalog backfill chain.
package musicinfo

import (
	"context"
	"net/url"
	"time"
)

// Track is a playable audio track as discovered on disk. Only Artist, Album
// and Title participate in enrichment.
type Track struct {
	ID       string        `json:"id"`
	Title    string        `json:"title"`
	Artist   string        `json:"artist"`
	Album    string        `json:"album"`
	Duration time.Duration `json:"duration"`
	FilePath string        `json:"filePath"`
	Artwork  string        `json:"artwork,omitempty"`
}

// Identity returns the enrichment identity of the track.
func (t Track) Identity() Identity {
	return Identity{Artist: t.Artist, Album: t.Album, Track: t.Title}
}

// Identity addresses enrichment data. Two files may share one.
type Identity struct {
	Artist string `json:"artist"`
	Album  string `json:"album"`
	Track  string `json:"track"`
}

func (id Identity) String() string {
	return id.Artist + " - " + id.Track
}

// Record is the enrichment result shown in the info panel.
type Record struct {
	Artist ArtistInfo `json:"artist"`
	Track  TrackInfo  `json:"track"`
	Error  string     `json:"error,omitempty"`
}

// Degraded reports whether the record was synthesized after a text provider failure.
func (r Record) Degraded() bool { return r.Error != "" }

// ArtistInfo is the artist half of a Record.
type ArtistInfo struct {
	GroupName    string        `json:"groupName"`
	Description  string        `json:"description"`
	Members      []MemberRef   `json:"members"`
	RecentIssues string        `json:"recentIssues"`
	ImageURL     string        `json:"imageUrl,omitempty"`
	Spotify      *SpotifyStats `json:"spotify,omitempty"`
}

// MemberRef names a group member. ImageURL is always null; member images
// are never displayed.
type MemberRef struct {
	Name            string  `json:"name"`
	ImageURL        *string `json:"imageUrl"`
	NamuWikiKeyword string  `json:"namuWikiKeyword"`
}

// WikiURL is the namu.wiki page the panel opens for the member.
func (m MemberRef) WikiURL() string {
	keyword := m.NamuWikiKeyword
	if keyword == "" {
		keyword = m.Name
	}
	return "https://namu.wiki/w/" + url.PathEscape(keyword)
}

// SpotifyStats are the streaming-catalog statistics merged into ArtistInfo.
type SpotifyStats struct {
	Genres     []string `json:"genres"`
	Followers  int      `json:"followers"`
	Popularity int      `json:"popularity"`
	URL        string   `json:"url"`
}

// TrackInfo is the track half of a Record.
type TrackInfo struct {
	MediaAppearances []string `json:"mediaAppearances"`
}

// Partial is what a catalog provider contributes to ArtistInfo.
// HasStats is set only by providers that report genres/followers/popularity.
type Partial struct {
	ImageURL   string
	Genres     []string
	Followers  int
	Popularity int
	URL        string
	HasStats   bool
}

// ArtistProvider looks up artist imagery and statistics in a catalog.
// A miss of any kind, including transport failures, is reported as ok=false.
type ArtistProvider interface {
	Name() string
	FetchArtist(ctx context.Context, artist string) (Partial, bool)
}

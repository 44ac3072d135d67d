package gemini

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"musicinfo/internal/musicinfo"
)

const promptTemplate = `Provide information about the following music.

Artist: %s
Album: %s
Track: %s

Respond with JSON in exactly this shape:
{
  "artist": {
    "groupName": "artist or group name",
    "description": "short description of the artist (under 200 characters)",
    "members": [
      {"name": "member name", "imageUrl": null, "namuWikiKeyword": "keyword for the member's namu.wiki page"}
    ],
    "recentIssues": "summary of recent news or activities",
    "imageUrl": null
  },
  "track": {
    "mediaAppearances": ["dramas, films, shows or ads this track appeared in"]
  }
}

Every imageUrl field must be null. Solo artists have an empty members list.
Respond with the JSON only, no other text.`

func buildPrompt(id musicinfo.Identity) string {
	return fmt.Sprintf(promptTemplate, id.Artist, id.Album, id.Track)
}

func buildRequestBody(id musicinfo.Identity) generateRequest {
	return generateRequest{Contents: []content{{Parts: []part{{Text: buildPrompt(id)}}}}}
}

// StripCodeFence removes an optional leading ```json or ``` marker and a
// trailing ``` marker.
func StripCodeFence(text string) string {
	s := strings.TrimSpace(text)
	switch {
	case strings.HasPrefix(s, "```json"):
		s = strings.TrimPrefix(s, "```json")
	case strings.HasPrefix(s, "```"):
		s = strings.TrimPrefix(s, "```")
	default:
		return s
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// wireRecord is the shape the model is asked to produce. Pointers mark the
// parts whose presence is required.
type wireRecord struct {
	Artist *struct {
		GroupName    *string `json:"groupName"`
		Description  string  `json:"description"`
		Members      []struct {
			Name            string `json:"name"`
			NamuWikiKeyword string `json:"namuWikiKeyword"`
		} `json:"members"`
		RecentIssues string `json:"recentIssues"`
	} `json:"artist"`
	Track *struct {
		MediaAppearances []string `json:"mediaAppearances"`
	} `json:"track"`
}

// ParseRecord turns model output into a record. Image fields in the output
// are discarded.
func ParseRecord(text string) (musicinfo.Record, error) {
	cleaned := StripCodeFence(text)
	if cleaned == "" {
		return musicinfo.Record{}, errors.New("empty response text")
	}

	var w wireRecord
	if err := json.Unmarshal([]byte(cleaned), &w); err != nil {
		return musicinfo.Record{}, fmt.Errorf("invalid JSON: %w", err)
	}
	if w.Artist == nil {
		return musicinfo.Record{}, errors.New("missing artist object")
	}
	if w.Artist.GroupName == nil {
		return musicinfo.Record{}, errors.New("missing artist.groupName")
	}

	rec := musicinfo.Record{
		Artist: musicinfo.ArtistInfo{
			GroupName:    *w.Artist.GroupName,
			Description:  w.Artist.Description,
			RecentIssues: w.Artist.RecentIssues,
			Members:      make([]musicinfo.MemberRef, 0, len(w.Artist.Members)),
		},
		Track: musicinfo.TrackInfo{MediaAppearances: []string{}},
	}
	for _, m := range w.Artist.Members {
		rec.Artist.Members = append(rec.Artist.Members, musicinfo.MemberRef{
			Name:            m.Name,
			NamuWikiKeyword: m.NamuWikiKeyword,
		})
	}
	if w.Track != nil && w.Track.MediaAppearances != nil {
		rec.Track.MediaAppearances = w.Track.MediaAppearances
	}
	return rec, nil
}

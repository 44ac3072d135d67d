package musicinfo

import (
	"errors"
	"reflect"
	"testing"
)

func TestValid(t *testing.T) {
	tests := []struct {
		name string
		rec  Record
		want bool
	}{
		{"group name set", Record{Artist: ArtistInfo{GroupName: "Alice"}}, true},
		{"empty group name", Record{}, false},
		{"blank group name", Record{Artist: ArtistInfo{GroupName: "   "}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rec.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNormalizeFillsDefaults(t *testing.T) {
	id := Identity{Artist: "Alice", Album: "Beta", Track: "Gamma"}
	got := Normalize(Record{}, id)

	if got.Artist.GroupName != "Alice" {
		t.Errorf("GroupName = %q, want %q", got.Artist.GroupName, "Alice")
	}
	if got.Artist.Description == "" || got.Artist.RecentIssues == "" {
		t.Errorf("expected placeholder description and issues, got %+v", got.Artist)
	}
	if got.Artist.Members == nil || len(got.Artist.Members) != 0 {
		t.Errorf("Members = %#v, want empty non-nil slice", got.Artist.Members)
	}
	if got.Track.MediaAppearances == nil || len(got.Track.MediaAppearances) != 0 {
		t.Errorf("MediaAppearances = %#v, want empty non-nil slice", got.Track.MediaAppearances)
	}
	if got.Artist.Spotify != nil {
		t.Errorf("Spotify = %+v, want nil", got.Artist.Spotify)
	}
	if !got.Valid() {
		t.Error("normalized record should be valid")
	}
}

func TestNormalizeKeepsProvidedFields(t *testing.T) {
	img := "https://example.com/member.jpg"
	in := Record{
		Artist: ArtistInfo{
			GroupName:    " Alice ",
			Description:  "d",
			RecentIssues: "none",
			Members: []MemberRef{
				{Name: "Bob", ImageURL: &img, NamuWikiKeyword: "Bob (singer)"},
				{Name: "  "},
				{Name: "Carol"},
			},
			Spotify: &SpotifyStats{Genres: []string{"a", "b", "c", "d"}, Followers: 10, Popularity: 140},
		},
		Track: TrackInfo{MediaAppearances: []string{"Drama OST", " "}},
	}

	got := Normalize(in, Identity{Artist: "ignored"})

	want := Record{
		Artist: ArtistInfo{
			GroupName:    "Alice",
			Description:  "d",
			RecentIssues: "none",
			Members: []MemberRef{
				{Name: "Bob", NamuWikiKeyword: "Bob (singer)"},
				{Name: "Carol", NamuWikiKeyword: "Carol"},
			},
			Spotify: &SpotifyStats{Genres: []string{"a", "b", "c"}, Followers: 10, Popularity: 100},
		},
		Track: TrackInfo{MediaAppearances: []string{"Drama OST"}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Normalize =\n%+v\nwant\n%+v", got, want)
	}
}

func TestFallback(t *testing.T) {
	rec := Fallback(Identity{Artist: "Alice"}, errors.New("api down"))

	if rec.Artist.GroupName != "Alice" {
		t.Errorf("GroupName = %q", rec.Artist.GroupName)
	}
	if rec.Error != "api down" {
		t.Errorf("Error = %q, want %q", rec.Error, "api down")
	}
	if !rec.Degraded() || !rec.Valid() {
		t.Error("fallback record must be degraded and valid")
	}
	if rec.Artist.ImageURL != "" {
		t.Errorf("fallback must not invent an image, got %q", rec.Artist.ImageURL)
	}
}

func TestMerge(t *testing.T) {
	t.Run("stats from streaming catalog", func(t *testing.T) {
		var rec Record
		rec.Merge(Partial{ImageURL: "img", Genres: []string{"pop"}, Followers: 5, Popularity: 7, URL: "u", HasStats: true})
		if rec.Artist.ImageURL != "img" || rec.Artist.Spotify == nil || rec.Artist.Spotify.Followers != 5 {
			t.Errorf("unexpected merge result: %+v", rec.Artist)
		}
	})

	t.Run("image only from media catalog", func(t *testing.T) {
		var rec Record
		rec.Merge(Partial{ImageURL: "img"})
		if rec.Artist.ImageURL != "img" || rec.Artist.Spotify != nil {
			t.Errorf("unexpected merge result: %+v", rec.Artist)
		}
	})

	t.Run("no image leaves record alone", func(t *testing.T) {
		var rec Record
		rec.Merge(Partial{Genres: []string{"pop"}, HasStats: true})
		if rec.Artist.ImageURL != "" || rec.Artist.Spotify != nil {
			t.Errorf("unexpected merge result: %+v", rec.Artist)
		}
	})
}

func TestMemberWikiURL(t *testing.T) {
	m := MemberRef{Name: "민지", NamuWikiKeyword: "민지(NewJeans)"}
	want := "https://namu.wiki/w/%EB%AF%BC%EC%A7%80%28NewJeans%29"
	if got := m.WikiURL(); got != want {
		t.Errorf("WikiURL() = %q, want %q", got, want)
	}
}

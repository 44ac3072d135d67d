package musicinfo

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.senan.xyz/taglib"
)

// ReadTrack builds a Track from the embedded tags of an audio file. The
// track ID is stable for a given absolute path.
func ReadTrack(path string) (Track, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Track{}, fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	tags, err := taglib.ReadTags(abs)
	if err != nil {
		return Track{}, fmt.Errorf("failed to read tags from %s: %w", abs, err)
	}

	t := Track{
		ID:       uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+abs)).String(),
		Title:    firstTag(tags, taglib.Title),
		Artist:   firstTag(tags, taglib.Artist),
		Album:    firstTag(tags, taglib.Album),
		FilePath: abs,
	}
	if t.Artist == "" {
		t.Artist = firstTag(tags, taglib.AlbumArtist)
	}
	if t.Title == "" {
		t.Title = strings.TrimSuffix(filepath.Base(abs), filepath.Ext(abs))
	}

	if props, err := taglib.ReadProperties(abs); err == nil {
		t.Duration = props.Length
	}

	return t, nil
}

func firstTag(tags map[string][]string, key string) string {
	for _, v := range tags[key] {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"musicinfo/internal/musicinfo"
)

func printRecord(out io.Writer, key string, rec musicinfo.Record) {
	a := rec.Artist
	row := func(label, value string) {
		if strings.TrimSpace(value) == "" {
			return
		}
		fmt.Fprintf(out, "%-12s %s\n", label+":", value)
	}

	row("Key", key)
	row("Artist", a.GroupName)
	row("About", a.Description)
	for i, m := range a.Members {
		label := ""
		if i == 0 {
			label = "Members:"
		}
		fmt.Fprintf(out, "%-12s %s <%s>\n", label, m.Name, m.WikiURL())
	}
	row("News", a.RecentIssues)
	row("Image", a.ImageURL)
	if s := a.Spotify; s != nil {
		row("Genres", strings.Join(s.Genres, ", "))
		row("Followers", humanize.Comma(int64(s.Followers)))
		row("Popularity", strconv.Itoa(s.Popularity)+"/100")
		row("Spotify", s.URL)
	}
	if media := rec.Track.MediaAppearances; len(media) > 0 {
		row("Featured in", strings.Join(media, ", "))
	}
	if rec.Degraded() {
		row("Warning", "generated text unavailable: "+rec.Error)
	}
}

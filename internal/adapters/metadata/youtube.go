package metadata

import (
	"fmt"
	"regexp"
	"strconv"
)

const youtubeIDLen = 11

var youtubeIDPattern = regexp.MustCompile(`^.*(youtu\.be/|v/|u/\w/|embed/|watch\?v=|&v=)([^#&?]*).*`)

// ExtractYouTubeID returns the video id of a YouTube link, or "" when the
// link carries no well-formed id.
func ExtractYouTubeID(link string) string {
	m := youtubeIDPattern.FindStringSubmatch(link)
	if m == nil || len(m[2]) != youtubeIDLen {
		return ""
	}
	return m[2]
}

func youtubeWatchURL(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}

var isoDurationPattern = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+(?:\.\d+)?)S)?)?$`)

// ParseISODuration converts the Data API's ISO-8601 durations ("PT4M13S",
// "P1DT2H") to seconds.
func ParseISODuration(s string) (float64, error) {
	m := isoDurationPattern.FindStringSubmatch(s)
	if m == nil || s == "P" || s == "PT" {
		return 0, fmt.Errorf("invalid ISO-8601 duration %q", s)
	}
	units := []float64{86400, 3600, 60, 1}
	var total float64
	for i, part := range m[1:] {
		if part == "" {
			continue
		}
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid ISO-8601 duration %q: %w", s, err)
		}
		total += v * units[i]
	}
	return total, nil
}

package utils

import "regexp"

const DefaultThumbnail = "/default-thumb.jpg"

// Matches watch?v=, youtu.be/, /embed/ and /v/ links and captures the 11 char id.
var youtubeIDPattern = regexp.MustCompile(`(?:youtube\.com/(?:[^/]+/.+/|(?:v|e(?:mbed)?)/|.*[?&]v=)|youtu\.be/)([^"&?/\s]{11})`)

// YouTubeID extracts the video id from a YouTube link, or "" if there is none.
func YouTubeID(link string) string {
	m := youtubeIDPattern.FindStringSubmatch(link)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

// YouTubeThumbnail returns the medium-quality thumbnail for a YouTube link and
// falls back to the bundled placeholder for anything else.
func YouTubeThumbnail(link string) string {
	id := YouTubeID(link)
	if id == "" {
		return DefaultThumbnail
	}
	return "https://img.youtube.com/vi/" + id + "/mqdefault.jpg"
}

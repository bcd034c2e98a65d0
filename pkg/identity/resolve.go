// Package identity turns free-form user input into a canonical YouTube video or playlist ID.
package identity

import (
	"net/url"
	"regexp"
	"strings"
)

// Kind tells what an input resolved to.
type Kind string

const (
	KindVideo    Kind = "video"
	KindPlaylist Kind = "playlist"
	KindSearch   Kind = "search"
)

// Result is the outcome of Resolve. ID is empty for KindSearch.
type Result struct {
	Kind Kind
	ID   string
}

const (
	watchPrefix    = "https://www.youtube.com/watch?v="
	playlistPrefix = "https://www.youtube.com/playlist?list="
)

type pattern struct {
	re   *regexp.Regexp
	kind Kind
	// key is set for query-string patterns: the ID is read from the re-parsed
	// match instead of a capture group.
	key string
}

// Ordered; first match wins.
var patterns = []pattern{
	{re: regexp.MustCompile(`(?:https?://)?(?:www\.|m\.)?youtu\.be/([0-9A-Za-z_-]{11})`), kind: KindVideo},
	{re: regexp.MustCompile(`(?:https?://)?(?:www\.|m\.|music\.)?youtube\.com/watch\?(?:[^#\s]*&)?v=[0-9A-Za-z_-]{11}`), kind: KindVideo, key: "v"},
	{re: regexp.MustCompile(`(?:https?://)?(?:www\.|m\.)?youtube(?:-nocookie)?\.com/embed/([0-9A-Za-z_-]{11})`), kind: KindVideo},
	{re: regexp.MustCompile(`(?:https?://)?(?:www\.|m\.)?youtube\.com/v/([0-9A-Za-z_-]{11})`), kind: KindVideo},
	{re: regexp.MustCompile(`(?:https?://)?(?:www\.|m\.)?youtube\.com/shorts/([0-9A-Za-z_-]{11})`), kind: KindVideo},
	{re: regexp.MustCompile(`(?:https?://)?(?:www\.|m\.)?youtube\.com/live/([0-9A-Za-z_-]{11})`), kind: KindVideo},
	{re: regexp.MustCompile(`(?:https?://)?(?:www\.|m\.|music\.)?youtube\.com/[^\s?]*\?(?:[^#\s]*&)?list=[0-9A-Za-z_-]+`), kind: KindPlaylist, key: "list"},
	{re: regexp.MustCompile(`(?:https?://)?(?:www\.|m\.)?youtube\.com/playlist/([0-9A-Za-z_-]+)`), kind: KindPlaylist},
}

var (
	bareVideoID    = regexp.MustCompile(`^[0-9A-Za-z_-]{11}$`)
	barePlaylistID = regexp.MustCompile(`^(?:PL|OL|UU|LL|RD|FL|UL|EL)[0-9A-Za-z_-]{10,}$`)
)

// Resolve classifies input. It never fails: inputs that match no URL shape and
// are not literal IDs come back as KindSearch.
func Resolve(input string) Result {
	s := strings.TrimSpace(input)
	if s == "" {
		return Result{Kind: KindSearch}
	}
	if r, ok := match(s); ok {
		return r
	}

	// Literal IDs: accepted only when the canonical URL yields the input unchanged.
	if bareVideoID.MatchString(s) {
		if r, ok := match(watchPrefix + s); ok && r.Kind == KindVideo && r.ID == s {
			return r
		}
	}
	if barePlaylistID.MatchString(s) {
		if r, ok := match(playlistPrefix + s); ok && r.Kind == KindPlaylist && r.ID == s {
			return r
		}
	}
	return Result{Kind: KindSearch}
}

// VideoID returns the video ID for input, if it is a video reference.
func VideoID(input string) (string, bool) {
	r := Resolve(input)
	if r.Kind != KindVideo {
		return "", false
	}
	return r.ID, true
}

// PlaylistID returns the playlist ID for input, if it is a playlist reference.
// A watch link carrying both v= and list= resolves to its playlist here.
func PlaylistID(input string) (string, bool) {
	s := strings.TrimSpace(input)
	for _, p := range patterns {
		if p.kind != KindPlaylist {
			continue
		}
		if id, ok := p.extract(s); ok {
			return id, true
		}
	}
	r := Resolve(s)
	if r.Kind != KindPlaylist {
		return "", false
	}
	return r.ID, true
}

// IsReference reports whether input names a concrete video or playlist.
func IsReference(input string) bool {
	return Resolve(input).Kind != KindSearch
}

// WatchURL returns the canonical watch URL for a video ID.
func WatchURL(id string) string {
	return watchPrefix + id
}

// PlaylistURL returns the canonical playlist URL for a playlist ID.
func PlaylistURL(id string) string {
	return playlistPrefix + id
}

func match(s string) (Result, bool) {
	for _, p := range patterns {
		if id, ok := p.extract(s); ok {
			return Result{Kind: p.kind, ID: id}, true
		}
	}
	return Result{}, false
}

func (p pattern) extract(s string) (string, bool) {
	if p.key == "" {
		m := p.re.FindStringSubmatch(s)
		if len(m) != 2 {
			return "", false
		}
		return m[1], true
	}

	m := p.re.FindString(s)
	if m == "" {
		return "", false
	}
	i := strings.IndexByte(m, '?')
	values, err := url.ParseQuery(m[i+1:])
	if err != nil {
		return "", false
	}
	id := values.Get(p.key)
	if id == "" {
		return "", false
	}
	return id, true
}

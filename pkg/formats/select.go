// Package formats picks renditions out of a classified manifest.
package formats

import (
	"strings"
	"unicode"

	"github.com/debargha2001/ytdlx/pkg/engine"
	"github.com/debargha2001/ytdlx/pkg/yterr"
)

const (
	Lowest  = "lowest"
	Highest = "highest"
)

// listHint is attached to every FormatNotFound error.
const listHint = "run the formats operation to list what this video offers"

// Selector applies the lowest/highest/custom policy.
type Selector struct {
	// MatchExact compares whole numeric tokens instead of substrings, so "480"
	// no longer matches a label containing "14800".
	MatchExact bool
}

// Selection is the set of renditions chosen for one job.
type Selection struct {
	Audio       *engine.Rendition `json:"audio,omitempty"`
	Video       *engine.Rendition `json:"video,omitempty"`
	Container   string            `json:"container"`
	CodecPolicy string            `json:"codecPolicy"`
	Filter      string            `json:"filter,omitempty"`
}

// Token reduces a resolution to its numeric prefix: "720p" becomes "720".
// Inputs without a leading number are returned lowercased.
func Token(resolution string) string {
	s := strings.ToLower(strings.TrimSpace(resolution))
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return s
	}
	return s[:end]
}

// SelectAudio picks an audio rendition. Custom tiers are served from AudioHigh.
func (s Selector) SelectAudio(out *engine.Output, tier string) (*engine.Rendition, error) {
	switch tier {
	case Lowest:
		if out.AudioLowF != nil {
			return out.AudioLowF, nil
		}
	case Highest:
		if out.AudioHighF != nil {
			return out.AudioHighF, nil
		}
	default:
		token := strings.ToLower(strings.TrimSpace(tier))
		for i := range out.AudioHigh {
			if wordMatch(out.AudioHigh[i].Format, token) {
				return &out.AudioHigh[i], nil
			}
		}
	}
	return nil, notFound("audio", tier)
}

// SelectVideo picks a video rendition: lowest is the first ManifestLow entry,
// highest the last ManifestHigh entry, anything else a custom resolution.
func (s Selector) SelectVideo(out *engine.Output, tier string) (*engine.Rendition, error) {
	switch tier {
	case Lowest:
		if len(out.ManifestLow) > 0 {
			return &out.ManifestLow[0], nil
		}
	case Highest:
		if n := len(out.ManifestHigh); n > 0 {
			return &out.ManifestHigh[n-1], nil
		}
	default:
		return s.SelectManifestEntry(out, tier)
	}
	return nil, notFound("video", tier)
}

// SelectManifestEntry returns the first ManifestHigh entry whose label carries the resolution token.
func (s Selector) SelectManifestEntry(out *engine.Output, resolution string) (*engine.Rendition, error) {
	token := Token(resolution)
	if token != "" {
		for i := range out.ManifestHigh {
			if s.matches(out.ManifestHigh[i].Format, token) {
				return &out.ManifestHigh[i], nil
			}
		}
	}
	return nil, notFound("video", resolution)
}

func (s Selector) matches(label, token string) bool {
	if !s.MatchExact {
		return strings.Contains(label, token)
	}
	for _, t := range strings.FieldsFunc(label, func(r rune) bool { return !unicode.IsDigit(r) }) {
		if t == token {
			return true
		}
	}
	return false
}

// wordMatch compares whole words so "low" does not select "ultralow".
func wordMatch(label, word string) bool {
	for _, w := range strings.FieldsFunc(strings.ToLower(label), func(r rune) bool { return !unicode.IsLetter(r) }) {
		if w == word {
			return true
		}
	}
	return false
}

func notFound(kind, tier string) error {
	return yterr.New(yterr.KindFormatNotFound, "no %s format matches %q", kind, tier).WithHint(listHint)
}

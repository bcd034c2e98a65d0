package engine

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// AudioTiers lists the audio quality tiers, lowest first.
var AudioTiers = []string{"ultralow", "low", "medium", "high"}

// RawFormat is one unclassified format as reported by an extractor.
// Field tags follow the yt-dlp JSON dump.
type RawFormat struct {
	FormatID       string  `json:"format_id"`
	FormatNote     string  `json:"format_note"`
	Ext            string  `json:"ext"`
	URL            string  `json:"url"`
	Protocol       string  `json:"protocol"`
	VCodec         string  `json:"vcodec"`
	ACodec         string  `json:"acodec"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	FPS            float64 `json:"fps"`
	ABR            float64 `json:"abr"`
	VBR            float64 `json:"vbr"`
	TBR            float64 `json:"tbr"`
	Filesize       int64   `json:"filesize"`
	FilesizeApprox int64   `json:"filesize_approx"`
	DynamicRange   string  `json:"dynamic_range"`

	// AudioTier is set by extractors that report the tier directly.
	AudioTier string `json:"-"`
}

func (f RawFormat) hasVideo() bool { return f.VCodec != "" && f.VCodec != "none" }
func (f RawFormat) hasAudio() bool { return f.ACodec != "" && f.ACodec != "none" }

func (f RawFormat) isManifest() bool { return strings.Contains(f.Protocol, "m3u8") }

func (f RawFormat) isDRC() bool {
	return strings.Contains(strings.ToLower(f.FormatNote), "drc") || strings.HasSuffix(f.FormatID, "-drc")
}

func (f RawFormat) isHDR() bool {
	if f.DynamicRange != "" && !strings.EqualFold(f.DynamicRange, "SDR") {
		return true
	}
	return strings.Contains(strings.ToUpper(f.FormatNote), "HDR")
}

func (f RawFormat) size() int64 {
	if f.Filesize > 0 {
		return f.Filesize
	}
	return f.FilesizeApprox
}

// audioTier reads the tier from the extractor or the format note, falling back to bitrate bands.
func (f RawFormat) audioTier() string {
	if f.AudioTier != "" {
		return f.AudioTier
	}
	words := strings.FieldsFunc(strings.ToLower(f.FormatNote), func(r rune) bool { return !unicode.IsLetter(r) })
	for _, w := range words {
		if tierRank(w) >= 0 {
			return w
		}
	}
	abr := f.ABR
	if abr == 0 {
		abr = f.TBR
	}
	switch {
	case abr < 40:
		return "ultralow"
	case abr < 100:
		return "low"
	case abr < 192:
		return "medium"
	default:
		return "high"
	}
}

func tierRank(tier string) int {
	for i, t := range AudioTiers {
		if t == tier {
			return i
		}
	}
	return -1
}

func shortCodec(codec string) string {
	codec, _, _ = strings.Cut(codec, ".")
	return codec
}

func audioRendition(f RawFormat) Rendition {
	tier := f.audioTier()
	bitrate := f.ABR
	if bitrate == 0 {
		bitrate = f.TBR
	}
	label := fmt.Sprintf("%s, %s %.0fk", tier, shortCodec(f.ACodec), bitrate)
	if f.isDRC() {
		label += ", DRC"
	}
	return Rendition{
		FormatID:   f.FormatID,
		Format:     label,
		Tier:       tier,
		URL:        f.URL,
		Ext:        f.Ext,
		Protocol:   f.Protocol,
		AudioCodec: f.ACodec,
		Bitrate:    bitrate,
		Filesize:   f.size(),
		DRC:        f.isDRC(),
	}
}

func videoRendition(f RawFormat) Rendition {
	tier := fmt.Sprintf("%dp", f.Height)
	label := tier
	if f.FPS > 30 {
		label += fmt.Sprintf("%.0f", f.FPS)
	}
	if f.isHDR() {
		label += " HDR"
	}
	if f.isManifest() {
		label += ", hls"
	}
	label += ", " + shortCodec(f.VCodec)

	bitrate := f.VBR
	if bitrate == 0 {
		bitrate = f.TBR
	}
	r := Rendition{
		FormatID:   f.FormatID,
		Format:     label,
		Tier:       tier,
		URL:        f.URL,
		Ext:        f.Ext,
		Protocol:   f.Protocol,
		VideoCodec: f.VCodec,
		Width:      f.Width,
		Height:     f.Height,
		FPS:        f.FPS,
		Bitrate:    bitrate,
		Filesize:   f.size(),
		HDR:        f.isHDR(),
	}
	if f.hasAudio() {
		r.AudioCodec = f.ACodec
	}
	return r
}

// Classify buckets raw formats into an Output. Audio-only formats are grouped by
// tier, video-only formats by height and HLS formats become manifest entries. Within
// each group the low list keeps the smallest rendition and the high list the largest.
// Without HLS formats the manifest lists mirror the video-only lists.
func Classify(raw []RawFormat, meta MetaData) *Output {
	var audio, audioDRC, video, videoHDR, manifest []Rendition
	for _, f := range raw {
		if f.URL == "" {
			continue
		}
		switch {
		case f.isManifest():
			if f.hasVideo() && f.Height > 0 {
				manifest = append(manifest, videoRendition(f))
			}
		case f.hasAudio() && !f.hasVideo():
			r := audioRendition(f)
			if r.DRC {
				audioDRC = append(audioDRC, r)
			} else {
				audio = append(audio, r)
			}
		case f.hasVideo() && !f.hasAudio() && f.Height > 0:
			r := videoRendition(f)
			if r.HDR {
				videoHDR = append(videoHDR, r)
			} else {
				video = append(video, r)
			}
		}
	}

	out := &Output{MetaData: meta}
	out.AudioLow, out.AudioHigh = bucket(audio, audioRank)
	out.AudioLowDRC, out.AudioHighDRC = bucket(audioDRC, audioRank)
	out.VideoLow, out.VideoHigh = bucket(video, heightRank)
	out.VideoLowHDR, out.VideoHighHDR = bucket(videoHDR, heightRank)
	out.ManifestLow, out.ManifestHigh = bucket(manifest, heightRank)
	if len(manifest) == 0 {
		out.ManifestLow = append([]Rendition(nil), out.VideoLow...)
		out.ManifestHigh = append([]Rendition(nil), out.VideoHigh...)
	}

	out.AudioLowF = first(out.AudioLow)
	out.AudioHighF = last(out.AudioHigh)
	out.VideoLowF = first(out.VideoLow)
	out.VideoHighF = last(out.VideoHigh)
	return out
}

func audioRank(r Rendition) int  { return tierRank(r.Tier) }
func heightRank(r Rendition) int { return r.Height }

func better(a, b Rendition) bool {
	if a.Bitrate != b.Bitrate {
		return a.Bitrate > b.Bitrate
	}
	return a.Filesize > b.Filesize
}

// bucket groups renditions by rank and returns the smallest and largest of each
// group, both ascending by rank.
func bucket(rs []Rendition, rank func(Rendition) int) (low, high []Rendition) {
	type pair struct{ low, high Rendition }
	groups := map[int]*pair{}
	var ranks []int
	for _, r := range rs {
		k := rank(r)
		g, ok := groups[k]
		if !ok {
			groups[k] = &pair{low: r, high: r}
			ranks = append(ranks, k)
			continue
		}
		if better(g.low, r) {
			g.low = r
		}
		if better(r, g.high) {
			g.high = r
		}
	}
	sort.Ints(ranks)
	for _, k := range ranks {
		low = append(low, groups[k].low)
		high = append(high, groups[k].high)
	}
	return low, high
}

func first(rs []Rendition) *Rendition {
	if len(rs) == 0 {
		return nil
	}
	r := rs[0]
	return &r
}

func last(rs []Rendition) *Rendition {
	if len(rs) == 0 {
		return nil
	}
	r := rs[len(rs)-1]
	return &r
}

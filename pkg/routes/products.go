package routes

import (
	"strings"

	"github.com/debargha2001/ytdlx/pkg/formats"
	"github.com/debargha2001/ytdlx/pkg/transcode"
)

// Product names one download operation.
type Product string

const (
	AudioLowest       Product = "AudioLowest"
	AudioHighest      Product = "AudioHighest"
	AudioCustom       Product = "AudioCustom"
	VideoLowest       Product = "VideoLowest"
	VideoHighest      Product = "VideoHighest"
	VideoCustom       Product = "VideoCustom"
	AudioVideoLowest  Product = "AudioVideoLowest"
	AudioVideoHighest Product = "AudioVideoHighest"
	AudioVideoCustom  Product = "AudioVideoCustom"
)

// Products lists every product in a stable order.
var Products = []Product{
	AudioLowest, AudioHighest, AudioCustom,
	VideoLowest, VideoHighest, VideoCustom,
	AudioVideoLowest, AudioVideoHighest, AudioVideoCustom,
}

// VideoResolutions is the resolution ladder accepted by video Custom products.
var VideoResolutions = []string{
	"144p", "240p", "360p", "480p", "720p", "1080p", "1440p",
	"2160p", "3072p", "4320p", "6480p", "8640p", "12000p",
}

// AudioResolutions are the tiers accepted by AudioCustom.
var AudioResolutions = []string{"high", "medium", "low", "ultralow"}

const custom = "custom"

type productSpec struct {
	kind transcode.Kind
	tier string
}

var specs = map[Product]productSpec{
	AudioLowest:       {transcode.KindAudio, formats.Lowest},
	AudioHighest:      {transcode.KindAudio, formats.Highest},
	AudioCustom:       {transcode.KindAudio, custom},
	VideoLowest:       {transcode.KindVideo, formats.Lowest},
	VideoHighest:      {transcode.KindVideo, formats.Highest},
	VideoCustom:       {transcode.KindVideo, custom},
	AudioVideoLowest:  {transcode.KindAudioVideo, formats.Lowest},
	AudioVideoHighest: {transcode.KindAudioVideo, formats.Highest},
	AudioVideoCustom:  {transcode.KindAudioVideo, custom},
}

// Kind returns the media family of p.
func (p Product) Kind() transcode.Kind { return specs[p].kind }

// Custom reports whether p requires a resolution.
func (p Product) Custom() bool { return specs[p].tier == custom }

// Valid reports whether p is a known product.
func (p Product) Valid() bool {
	_, ok := specs[p]
	return ok
}

// ParseProduct accepts product names in any case, with or without dashes or
// underscores: "AudioLowest", "audio-lowest" and "audio_lowest" are equal.
func ParseProduct(s string) (Product, bool) {
	norm := strings.ToLower(strings.NewReplacer("-", "", "_", "", " ", "").Replace(s))
	for _, p := range Products {
		if strings.ToLower(string(p)) == norm {
			return p, true
		}
	}
	return "", false
}

// Resolutions returns the resolutions p accepts, or nil for non-Custom products.
func (p Product) Resolutions() []string {
	if !p.Custom() {
		return nil
	}
	if p.Kind() == transcode.KindAudio {
		return AudioResolutions
	}
	return VideoResolutions
}

// Filters returns the filter names p accepts.
func (p Product) Filters() []string {
	if p.Kind() == transcode.KindAudio {
		return transcode.AudioFilters
	}
	return transcode.VideoFilters
}

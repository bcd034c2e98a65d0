package transcode

import (
	"regexp"
	"strings"
)

// FilePrefix starts every generated file name.
const FilePrefix = "yt-dlx"

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_]+`)

// SanitizeTitle keeps only [A-Za-z0-9_], collapsing every other run to one underscore.
func SanitizeTitle(title string) string {
	s := strings.Trim(unsafeChars.ReplaceAllString(title, "_"), "_")
	if s == "" {
		return "untitled"
	}
	return s
}

// Filename builds yt-dlx_(<product>_[<resolution>_]<filter>)_<title>.<ext>.
func Filename(product, resolution, filter, title, ext string) string {
	var b strings.Builder
	b.WriteString(FilePrefix)
	b.WriteString("_(")
	b.WriteString(product)
	b.WriteString("_")
	if resolution != "" {
		b.WriteString(resolution)
		b.WriteString("_")
	}
	b.WriteString(filter)
	b.WriteString(")_")
	b.WriteString(SanitizeTitle(title))
	b.WriteString(".")
	b.WriteString(ext)
	return b.String()
}

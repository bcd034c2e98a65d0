package transcode

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Progress is one ffmpeg -progress report.
type Progress struct {
	Frame     int64         `json:"frame,omitempty"`
	FPS       float64       `json:"fps,omitempty"`
	Bitrate   string        `json:"bitrate,omitempty"`
	TotalSize int64         `json:"totalSize"`
	OutTime   time.Duration `json:"outTime"`
	Speed     string        `json:"speed,omitempty"`
	Percent   float64       `json:"percent"` // 0 when the duration is unknown
	Done      bool          `json:"done,omitempty"`
}

// Timemark renders OutTime as HH:MM:SS.
func (p Progress) Timemark() string {
	total := int(p.OutTime.Round(time.Second) / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, total%3600/60, total%60)
}

// WithDuration fills Percent from a known media duration in seconds.
func (p Progress) WithDuration(seconds float64) Progress {
	if seconds <= 0 {
		return p
	}
	pct := p.OutTime.Seconds() / seconds * 100
	if pct > 100 || p.Done {
		pct = 100
	}
	if pct < 0 {
		pct = 0
	}
	p.Percent = pct
	return p
}

// ParseProgress reads key=value blocks from ffmpeg -progress output and calls fn
// once per block, at each progress= line.
func ParseProgress(r io.Reader, fn func(Progress)) error {
	scanner := bufio.NewScanner(r)
	var cur Progress
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch key {
		case "frame":
			cur.Frame, _ = strconv.ParseInt(value, 10, 64)
		case "fps":
			cur.FPS, _ = strconv.ParseFloat(value, 64)
		case "bitrate":
			cur.Bitrate = value
		case "total_size":
			cur.TotalSize, _ = strconv.ParseInt(value, 10, 64)
		case "out_time_us":
			if us, err := strconv.ParseInt(value, 10, 64); err == nil && us >= 0 {
				cur.OutTime = time.Duration(us) * time.Microsecond
			}
		case "speed":
			cur.Speed = value
		case "progress":
			cur.Done = value == "end"
			fn(cur)
		}
	}
	return scanner.Err()
}

package transcode

// AudioFilters lists the named audio effects in display order.
var AudioFilters = []string{
	"bassboost", "echo", "flanger", "nightcore", "panning", "phaser", "reverse", "slow",
	"speed", "subboost", "superslow", "superspeed", "surround", "vaporwave", "vibrato", "8d",
}

// VideoFilters lists the named video effects in display order.
var VideoFilters = []string{
	"grayscale", "invert", "rotate90", "rotate180", "rotate270", "flipHorizontal", "flipVertical",
}

// AudioFilterExpr returns the ffmpeg -af expression for a named audio effect.
func AudioFilterExpr(name string) (string, bool) {
	switch name {
	case "bassboost":
		return "bass=g=10,dynaudnorm=f=150", true
	case "echo":
		return "aecho=0.8:0.9:1000:0.3", true
	case "flanger":
		return "flanger", true
	case "nightcore":
		return "aresample=48000,asetrate=48000*1.25", true
	case "panning", "8d":
		return "apulsator=hz=0.08", true
	case "phaser":
		return "aphaser=in_gain=0.4", true
	case "reverse":
		return "areverse", true
	case "slow":
		return "atempo=0.8", true
	case "speed":
		return "atempo=2", true
	case "subboost":
		return "asubboost", true
	case "superslow":
		return "atempo=0.5", true
	case "superspeed":
		return "atempo=3", true
	case "surround":
		return "surround", true
	case "vaporwave":
		return "aresample=48000,asetrate=48000*0.8", true
	case "vibrato":
		return "vibrato=f=6.5", true
	}
	return "", false
}

// VideoFilterExpr returns the ffmpeg -vf expression for a named video effect.
func VideoFilterExpr(name string) (string, bool) {
	switch name {
	case "grayscale":
		return "colorchannelmixer=.3:.4:.3:0:.3:.4:.3:0:.3:.4:.3", true
	case "invert":
		return "negate", true
	case "rotate90":
		return "rotate=PI/2", true
	case "rotate180":
		return "rotate=PI", true
	case "rotate270":
		return "rotate=3*PI/2", true
	case "flipHorizontal":
		return "hflip", true
	case "flipVertical":
		return "vflip", true
	}
	return "", false
}

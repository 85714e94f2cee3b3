package grid

import (
	"regexp"
	"strings"
)

type Provider string

const (
	ProviderNone    Provider = ""
	ProviderYouTube Provider = "youtube"
	ProviderSpotify Provider = "spotify"
)

// Embed is the streaming-provider classification of an iframe source.
type Embed struct {
	Provider Provider `json:"provider,omitempty"`
	VideoID  string   `json:"videoId,omitempty"`
}

var youtubePatterns = []*regexp.Regexp{
	regexp.MustCompile(`youtube\.com/embed/([^?&]+)`),
	regexp.MustCompile(`youtube-nocookie\.com/embed/([^?&]+)`),
	regexp.MustCompile(`youtube\.com/watch\?v=([^&]+)`),
	regexp.MustCompile(`youtu\.be/([^?&]+)`),
}

// ClassifyEmbed recognises YouTube (embed, nocookie, watch and short links)
// and Spotify embed URLs. Other sources yield the zero Embed.
func ClassifyEmbed(src string) Embed {
	for _, re := range youtubePatterns {
		if m := re.FindStringSubmatch(src); m != nil {
			return Embed{Provider: ProviderYouTube, VideoID: m[1]}
		}
	}
	if strings.Contains(src, "spotify.com/embed") {
		return Embed{Provider: ProviderSpotify}
	}
	return Embed{}
}

// Thumbnail returns the YouTube preview image URL, or "".
func (e Embed) Thumbnail() string {
	if e.Provider != ProviderYouTube || e.VideoID == "" {
		return ""
	}
	return "https://img.youtube.com/vi/" + e.VideoID + "/hqdefault.jpg"
}

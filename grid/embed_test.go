package grid

import "testing"

func TestClassifyEmbed(t *testing.T) {
	cases := []struct {
		src   string
		want  Embed
		thumb string
	}{
		{"https://www.youtube.com/embed/abc123?autoplay=1", Embed{ProviderYouTube, "abc123"}, "https://img.youtube.com/vi/abc123/hqdefault.jpg"},
		{"https://www.youtube-nocookie.com/embed/xyz&t=3", Embed{ProviderYouTube, "xyz"}, "https://img.youtube.com/vi/xyz/hqdefault.jpg"},
		{"https://www.youtube.com/watch?v=vid42&list=PL", Embed{ProviderYouTube, "vid42"}, "https://img.youtube.com/vi/vid42/hqdefault.jpg"},
		{"https://youtu.be/short1?si=q", Embed{ProviderYouTube, "short1"}, "https://img.youtube.com/vi/short1/hqdefault.jpg"},
		{"https://open.spotify.com/embed/playlist/37i9dQZF1DXcBWIGoYBM5M", Embed{Provider: ProviderSpotify}, ""},
		{"https://open.spotify.com/playlist/37i9", Embed{}, ""},
		{"https://example.com/widget", Embed{}, ""},
		{"", Embed{}, ""},
	}
	for _, tc := range cases {
		got := ClassifyEmbed(tc.src)
		if got != tc.want {
			t.Fatalf("ClassifyEmbed(%q)=%+v want %+v", tc.src, got, tc.want)
		}
		if th := got.Thumbnail(); th != tc.thumb {
			t.Fatalf("Thumbnail(%q)=%q want %q", tc.src, th, tc.thumb)
		}
	}
}

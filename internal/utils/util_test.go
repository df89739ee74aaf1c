package utils

import (
	"slices"
	"strings"
	"testing"

	"github.com/sonroyaalmerol/kumaplayer/internal/media"
)

func TestValidateVolume(t *testing.T) {
	cases := map[int]bool{-1: false, 0: true, 100: true, 200: true, 201: false}
	for v, want := range cases {
		if got := ValidateVolume(v); got != want {
			t.Errorf("ValidateVolume(%d) = %v, want %v", v, got, want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   int
		want string
	}{
		{0, "00:00"},
		{42, "00:42"},
		{60, "01:00"},
		{3599, "59:59"},
		{3661, "01:01:01"},
		{360061, "100:01:01"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.in); got != tt.want {
			t.Errorf("FormatDuration(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTrackToMarkdown(t *testing.T) {
	tr := media.Track{Title: "Song", URL: "https://example.com/a", Duration: 61, Artist: "Band"}

	if got, want := TrackToMarkdown(tr, false), "[Song](https://example.com/a) (01:01), Band"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	if got, want := TrackToMarkdown(tr, true), "[Song](<https://example.com/a>) (01:01), Band"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}

	tr.Artist = ""
	if got, want := TrackToMarkdown(tr, false), "[Song](https://example.com/a) (01:01)"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestIsSubPath(t *testing.T) {
	valid := [][2]string{
		{"/", "test.mp3"},
		{"", "test.mp3"},
		{"/public", "/public/test.mp3"},
		{"/public", "/public/sub/test.mp3"},
	}
	for _, c := range valid {
		if !IsSubPath(c[0], c[1]) {
			t.Errorf("IsSubPath(%q, %q) = false, want true", c[0], c[1])
		}
	}

	invalid := [][2]string{
		{"/public", "/public"},
		{"/public", "/public/"},
		{"/public", "test.mp3"},
		{"/public", "/etc"},
		{"/public", "/public/../etc/passwd"},
		{"/public/test", "public/test.mp3"},
	}
	for _, c := range invalid {
		if IsSubPath(c[0], c[1]) {
			t.Errorf("IsSubPath(%q, %q) = true, want false", c[0], c[1])
		}
	}
}

func TestShuffleKeepsElements(t *testing.T) {
	in := []int{1, 2, 3, 4, 5, 6, 7, 8}
	a := slices.Clone(in)
	Shuffle(a)
	if len(a) != len(in) {
		t.Fatalf("length changed: %d", len(a))
	}
	slices.Sort(a)
	if !slices.Equal(a, in) {
		t.Fatalf("elements changed: %v", a)
	}
}

func TestParseDurationString(t *testing.T) {
	tests := map[string]int{
		"90":      90,
		"1:30":    90,
		"1:00:00": 3600,
		"2m5s":    125,
		"1h":      3600,
		"abc":     -1,
		"":        -1,
	}
	for in, want := range tests {
		if got := ParseDurationString(in); got != want {
			t.Errorf("ParseDurationString(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestBuildStreamHeaders(t *testing.T) {
	got := BuildStreamHeaders(map[string]string{"referer": " https://example.com/ ", "user-agent": "kuma"})
	want := "Accept: */*\r\n" +
		"Accept-Language: en-US,en;q=0.9\r\n" +
		"Connection: keep-alive\r\n" +
		"Referer: https://example.com/\r\n" +
		"User-Agent: kuma\r\n"
	if got != want {
		t.Fatalf("headers = %q", got)
	}

	if h := BuildStreamHeaders(nil); !strings.Contains(h, "User-Agent: Mozilla/5.0") {
		t.Fatalf("missing default user agent: %q", h)
	}
}

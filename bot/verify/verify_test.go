package verify

import (
	"errors"
	"testing"

	"go.senan.xyz/taglib"

	"github.com/muhammadzakizn/sonora/bot"
)

func newTestVerifier(tags map[string][]string, tagErr error) *Verifier {
	v := New(DefaultOptions(), nil)
	v.readTags = func(path string) (map[string][]string, error) {
		if tagErr != nil {
			return nil, tagErr
		}
		return tags, nil
	}
	v.readProperties = func(path string) (taglib.Properties, error) {
		return taglib.Properties{Bitrate: 160, SampleRate: 48000}, nil
	}
	return v
}

func TestVerifyAcceptsMatchingTags(t *testing.T) {
	v := newTestVerifier(map[string][]string{
		taglib.Title:  {"Shape of You"},
		taglib.Artist: {"Ed Sheeran"},
	}, nil)

	artifact := &bot.ResolvedArtifact{Path: "/tmp/x.opus"}
	res, err := v.Verify(artifact, bot.TrackDescriptor{Title: "Shape of You", Artist: "Ed Sheeran"})
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if !res.Accepted {
		t.Fatalf("expected acceptance, got reason %q", res.Reason)
	}
	if res.Confidence != 1 {
		t.Errorf("Confidence = %v, want 1", res.Confidence)
	}
}

func TestVerifyRejectsLiveVersion(t *testing.T) {
	v := newTestVerifier(map[string][]string{
		taglib.Title:  {"Shape of You (Live at Wembley)"},
		taglib.Artist: {"Ed Sheeran"},
	}, nil)

	_, err := v.Verify(&bot.ResolvedArtifact{Path: "/tmp/x.opus"},
		bot.TrackDescriptor{Title: "Shape of You", Artist: "Ed Sheeran"})
	if err == nil {
		t.Fatal("expected rejection of live version")
	}
	var verr *Error
	if !errors.As(err, &verr) {
		t.Fatalf("error type = %T, want *Error", err)
	}
	if verr.Result.Accepted {
		t.Error("rejected result marked accepted")
	}
}

func TestVerifyAcceptsLiveWhenRequested(t *testing.T) {
	v := newTestVerifier(map[string][]string{
		taglib.Title:  {"Shape of You (Live at Wembley)"},
		taglib.Artist: {"Ed Sheeran"},
	}, nil)

	res, err := v.Verify(&bot.ResolvedArtifact{Path: "/tmp/x.opus"},
		bot.TrackDescriptor{Title: "Shape of You (Live at Wembley)", Artist: "Ed Sheeran"})
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if !res.Accepted {
		t.Fatalf("live version explicitly requested should pass, reason %q", res.Reason)
	}
}

func TestVerifyTitleContainsArtistWaivesArtistCheck(t *testing.T) {
	// Channel uploads often stuff the artist into the title and leave the
	// artist tag empty or set to the uploader name. The artist check is
	// waived and the artist prefix must not drag the title score down.
	cases := []struct {
		name        string
		actualTitle string
		actualTag   string
	}{
		{"empty artist tag", "Ed Sheeran - Shape of You", ""},
		{"uploader artist tag", "Ed Sheeran - Shape of You", "MusicChannelHD"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := newTestVerifier(map[string][]string{
				taglib.Title:  {tc.actualTitle},
				taglib.Artist: {tc.actualTag},
			}, nil)

			res, err := v.Verify(&bot.ResolvedArtifact{Path: "/tmp/x.opus"},
				bot.TrackDescriptor{Title: "Shape of You", Artist: "Ed Sheeran"})
			if err != nil {
				t.Fatalf("Verify() error = %v", err)
			}
			if !res.Accepted {
				t.Fatalf("expected acceptance, got reason %q", res.Reason)
			}
		})
	}
}

func TestStripArtist(t *testing.T) {
	if got := stripArtist("Ed Sheeran - Shape of You", "Ed Sheeran"); got != "shape of you" {
		t.Errorf("stripArtist = %q, want %q", got, "shape of you")
	}
}

func TestVerifyFilenameFallback(t *testing.T) {
	v := newTestVerifier(nil, errors.New("no tags"))

	res, err := v.Verify(&bot.ResolvedArtifact{Path: "/cache/Dua Lipa - Levitating.m4a"},
		bot.TrackDescriptor{Title: "Levitating", Artist: "Dua Lipa"})
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if !res.Accepted {
		t.Fatalf("filename fallback should match, reason %q", res.Reason)
	}
	if res.ActualArtist != "Dua Lipa" {
		t.Errorf("ActualArtist = %q, want parsed from filename", res.ActualArtist)
	}
}

func TestVerifyRejectsWrongTrack(t *testing.T) {
	v := newTestVerifier(map[string][]string{
		taglib.Title:  {"Never Gonna Give You Up"},
		taglib.Artist: {"Rick Astley"},
	}, nil)

	_, err := v.Verify(&bot.ResolvedArtifact{Path: "/tmp/x.opus"},
		bot.TrackDescriptor{Title: "Shape of You", Artist: "Ed Sheeran"})
	if err == nil {
		t.Fatal("expected rejection of unrelated track")
	}
}

func TestVerifyNoMetadataAtAll(t *testing.T) {
	v := newTestVerifier(nil, errors.New("no tags"))

	_, err := v.Verify(&bot.ResolvedArtifact{Path: "/cache/.opus"},
		bot.TrackDescriptor{Title: "Anything", Artist: "Anyone"})
	if err == nil {
		t.Fatal("expected error when no metadata is extractable")
	}
}

func TestNormalizeStripsNoiseSuffixes(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Shape of You (Official Video)", "shape of you"},
		{"Shape of You [Official Audio]", "shape of you"},
		{"Shape Of You - Lyrics", "shape of you"},
		{"Shape of You (Official Music Video) HD", "shape of you"},
		{"  Shape   of	You  ", "shape of you"},
	}
	for _, tc := range cases {
		if got := Normalize(tc.in); got != tc.want {
			t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSimilarity(t *testing.T) {
	if got := Similarity("Shape of You", "shape of you"); got != 1 {
		t.Errorf("case-only difference: got %v, want 1", got)
	}
	if got := Similarity("Shape of You", ""); got != 0 {
		t.Errorf("empty side: got %v, want 0", got)
	}
	if got := Similarity("Shape of You", "Shapes of You"); got < 0.9 {
		t.Errorf("near match scored %v, want >= 0.9", got)
	}
	if got := Similarity("Shape of You", "Bohemian Rhapsody"); got > 0.4 {
		t.Errorf("unrelated titles scored %v, want low", got)
	}
}

func TestContainsWordBoundaries(t *testing.T) {
	if containsWord("staying alive", "live") {
		t.Error("\"live\" matched inside \"alive\"")
	}
	if !containsWord("recorded live in 1985", "live") {
		t.Error("standalone \"live\" not matched")
	}
}

// Package verify decides whether a downloaded audio file actually is the
// track a descriptor asked for. Providers search by free text, so a
// confidently wrong result (a live rip, a remix, a cover with a similar
// name) is the common failure mode; the verifier guards the pipeline with
// fuzzy metadata matching plus an unwanted-version keyword check.
package verify

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/agnivade/levenshtein"
	"go.senan.xyz/taglib"

	"github.com/muhammadzakizn/sonora/bot"
)

// Result carries the verification verdict. It is consumed immediately by
// the resolution pipeline and never persisted.
type Result struct {
	Accepted   bool
	Confidence float64

	ExpectedTitle  string
	ExpectedArtist string
	ActualTitle    string
	ActualArtist   string

	// Reason is a human-readable explanation, set on rejection.
	Reason string
}

// Error is returned when verification rejects an artifact. It wraps the
// Result so the pipeline can log the mismatch detail.
type Error struct {
	Result Result
}

func (e *Error) Error() string {
	return fmt.Sprintf("verification rejected %q (expected %q): %s",
		e.Result.ActualTitle, e.Result.ExpectedTitle, e.Result.Reason)
}

// Options holds the empirically chosen thresholds. They have no documented
// derivation, so they stay configurable rather than hard-coded.
type Options struct {
	// TitleSimilarity is the minimum normalized title similarity (default 0.6).
	TitleSimilarity float64

	// ArtistSimilarity is the minimum normalized artist similarity
	// (default 0.5). Waived when the actual title contains the expected
	// artist, which is common with channel-uploaded files.
	ArtistSimilarity float64
}

// DefaultOptions returns the thresholds used when none are configured.
func DefaultOptions() Options {
	return Options{TitleSimilarity: 0.6, ArtistSimilarity: 0.5}
}

// Verifier checks downloaded artifacts against their descriptors.
type Verifier struct {
	opts   Options
	logger bot.Logger

	readTags       func(path string) (map[string][]string, error)
	readProperties func(path string) (taglib.Properties, error)
}

// New creates a Verifier reading real embedded tags via taglib.
func New(opts Options, logger bot.Logger) *Verifier {
	if opts.TitleSimilarity <= 0 {
		opts.TitleSimilarity = DefaultOptions().TitleSimilarity
	}
	if opts.ArtistSimilarity <= 0 {
		opts.ArtistSimilarity = DefaultOptions().ArtistSimilarity
	}
	return &Verifier{
		opts:           opts,
		logger:         logger,
		readTags:       taglib.ReadTags,
		readProperties: taglib.ReadProperties,
	}
}

// unwantedKeywords flag alternate versions. A keyword only causes
// rejection when it appears in the actual title but not the expected one:
// asking for "Song (Live)" legitimately matches a live recording.
var unwantedKeywords = []string{
	"remix", "live", "cover", "nightcore", "instrumental", "karaoke",
	"sped up", "sped-up", "slowed", "reverb", "8d", "acoustic", "mashup",
	"remaster",
}

// noiseSuffixes are decorations providers append to titles that carry no
// identity information and must not count against similarity.
var noiseSuffixes = []string{
	"official video", "official music video", "official audio", "official lyric video",
	"lyric video", "lyrics", "audio", "visualizer", "hd", "hq", "4k", "mv",
	"full song", "official", "video",
}

// Verify reads the artifact's embedded metadata (falling back to filename
// parsing) and scores it against the descriptor. On acceptance it also
// fills the artifact's technical properties. The artifact file itself is
// not touched; deleting rejected files is the pipeline's job.
func (v *Verifier) Verify(artifact *bot.ResolvedArtifact, desc bot.TrackDescriptor) (Result, error) {
	actualTitle, actualArtist := v.extractMetadata(artifact.Path)

	res := Result{
		ExpectedTitle:  desc.Title,
		ExpectedArtist: desc.Artist,
		ActualTitle:    actualTitle,
		ActualArtist:   actualArtist,
	}

	if actualTitle == "" {
		res.Reason = "no usable metadata in file or filename"
		return res, &Error{Result: res}
	}

	// Unwanted-version guard first: it overrides any similarity score.
	if kw, ok := unwantedVersion(desc.Title, actualTitle); ok {
		res.Reason = fmt.Sprintf("unwanted version: actual title contains %q", kw)
		return res, &Error{Result: res}
	}

	titleSim := Similarity(desc.Title, actualTitle)
	artistSim := Similarity(desc.Artist, actualArtist)
	titleHasArtist := desc.Artist != "" &&
		strings.Contains(Normalize(actualTitle), Normalize(desc.Artist))
	if titleHasArtist {
		// Channel uploads fold the artist into the title ("Artist -
		// Title"); score the stripped title too so the prefix does not
		// count against it.
		if sim := Similarity(desc.Title, stripArtist(actualTitle, desc.Artist)); sim > titleSim {
			titleSim = sim
		}
	}

	res.Confidence = titleSim
	if artistOK := artistSim >= v.opts.ArtistSimilarity || titleHasArtist; titleSim >= v.opts.TitleSimilarity && artistOK {
		res.Accepted = true
		v.fillProperties(artifact)
		return res, nil
	}

	res.Reason = fmt.Sprintf("similarity too low: title %.2f (need %.2f), artist %.2f (need %.2f)",
		titleSim, v.opts.TitleSimilarity, artistSim, v.opts.ArtistSimilarity)
	return res, &Error{Result: res}
}

// extractMetadata reads embedded tags, falling back to parsing the
// filename as "Artist - Title" when tags are missing or placeholders.
func (v *Verifier) extractMetadata(path string) (title, artist string) {
	tags, err := v.readTags(path)
	if err != nil {
		if v.logger != nil {
			v.logger.Debug("tag read failed, falling back to filename", "path", path, "error", err)
		}
	} else {
		title = firstTag(tags, taglib.Title)
		artist = firstTag(tags, taglib.Artist)
	}

	if isUnknown(title) {
		fnArtist, fnTitle := parseFilename(path)
		title = fnTitle
		if isUnknown(artist) {
			artist = fnArtist
		}
	}
	if isUnknown(artist) {
		artist = ""
	}
	return title, artist
}

func (v *Verifier) fillProperties(artifact *bot.ResolvedArtifact) {
	if info, err := os.Stat(artifact.Path); err == nil {
		artifact.Size = info.Size()
	}
	if artifact.Format == "" {
		artifact.Format = strings.TrimPrefix(strings.ToLower(filepath.Ext(artifact.Path)), ".")
	}
	props, err := v.readProperties(artifact.Path)
	if err != nil {
		if v.logger != nil {
			v.logger.Debug("property read failed", "path", artifact.Path, "error", err)
		}
		return
	}
	artifact.Bitrate = int(props.Bitrate)
	artifact.SampleRate = int(props.SampleRate)
}

func firstTag(tags map[string][]string, key string) string {
	values := tags[key]
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

func isUnknown(value string) bool {
	v := strings.ToLower(strings.TrimSpace(value))
	return v == "" || v == "unknown" || v == "unknown artist" || v == "unknown title" || v == "n/a"
}

// parseFilename splits "Artist - Title.ext" into its parts. Without a
// separator the whole stem is treated as the title.
func parseFilename(path string) (artist, title string) {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if idx := strings.Index(stem, " - "); idx >= 0 {
		return strings.TrimSpace(stem[:idx]), strings.TrimSpace(stem[idx+3:])
	}
	return "", strings.TrimSpace(stem)
}

// stripArtist removes the first occurrence of the normalized artist from
// the normalized title. Callers only invoke it after confirming the
// artist is contained in the title.
func stripArtist(title, artist string) string {
	stripped := strings.Replace(Normalize(title), Normalize(artist), " ", 1)
	return strings.Join(strings.Fields(stripped), " ")
}

// unwantedVersion reports the first keyword present in the actual title
// but absent from the expected one.
func unwantedVersion(expectedTitle, actualTitle string) (string, bool) {
	expected := Normalize(expectedTitle)
	actual := Normalize(actualTitle)
	for _, kw := range unwantedKeywords {
		nkw := Normalize(kw)
		if containsWord(actual, nkw) && !containsWord(expected, nkw) {
			return kw, true
		}
	}
	return "", false
}

// containsWord matches kw on word boundaries so "live" does not fire on
// "alive" or "delivery".
func containsWord(haystack, kw string) bool {
	idx := 0
	for {
		at := strings.Index(haystack[idx:], kw)
		if at < 0 {
			return false
		}
		at += idx
		before := at == 0 || haystack[at-1] == ' '
		end := at + len(kw)
		after := end == len(haystack) || haystack[end] == ' '
		if before && after {
			return true
		}
		idx = at + 1
	}
}

// Normalize case-folds, strips punctuation, collapses whitespace and drops
// known noise suffixes so similarity compares identity, not decoration.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))

	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 0x80:
			// Keep non-ASCII letters (CJK titles, accents) as-is.
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	s = strings.Join(strings.Fields(b.String()), " ")

	for changed := true; changed; {
		changed = false
		for _, suffix := range noiseSuffixes {
			if strings.HasSuffix(s, " "+suffix) {
				s = strings.TrimSpace(strings.TrimSuffix(s, " "+suffix))
				changed = true
			}
		}
	}
	return s
}

// Similarity returns a [0,1] score between two normalized strings using
// Levenshtein distance over the longer length. Two empty strings count as
// identical; one empty side scores zero.
func Similarity(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == nb {
		return 1
	}
	if na == "" || nb == "" {
		return 0
	}
	longest := len([]rune(na))
	if l := len([]rune(nb)); l > longest {
		longest = l
	}
	dist := levenshtein.ComputeDistance(na, nb)
	sim := 1 - float64(dist)/float64(longest)
	if sim < 0 {
		return 0
	}
	return sim
}

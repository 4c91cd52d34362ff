package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Naming selects how output files are laid out.
type Naming string

const (
	// NamingFolder writes <target>_<YYYY-MM-DD_HH-MM-SS>/story.txt and audio.<ext>.
	NamingFolder Naming = "folder"
	// NamingTimestamp writes audio_<YYYYmmdd_HHMMSS>.<ext> into the output dir.
	NamingTimestamp Naming = "timestamp"
	// NamingUUID writes <job id>.<ext> into the output dir.
	NamingUUID Naming = "uuid"
)

// ErrUnknownNaming is returned for an unrecognised naming scheme.
var ErrUnknownNaming = errors.New("unknown output naming")

// ParseNaming parses a naming scheme name. Empty means NamingFolder.
func ParseNaming(s string) (Naming, error) {
	switch n := Naming(strings.ToLower(strings.TrimSpace(s))); n {
	case "":
		return NamingFolder, nil
	case NamingFolder, NamingTimestamp, NamingUUID:
		return n, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownNaming, s)
	}
}

const (
	defaultTargetName = "audio"
	maxTargetRunes    = 100
	textFileName      = "story.txt"
	audioFileBase     = "audio"
)

// Characters that are not allowed in file names on at least one platform.
var unsafeName = runes.Predicate(func(r rune) bool {
	return strings.ContainsRune(`<>:"/\|?*`, r)
})

// SanitizeTargetName makes a user-supplied name safe to use as a file or
// folder name: NFC-normalized, without control characters or path
// separators, at most 100 characters. An unusable name becomes "audio".
func SanitizeTargetName(name string) string {
	t := transform.Chain(
		norm.NFC,
		runes.Remove(runes.In(unicode.Cc)),
		runes.Map(func(r rune) rune {
			if unsafeName.Contains(r) {
				return '_'
			}
			return r
		}),
	)
	out, _, err := transform.String(t, name)
	if err != nil {
		return defaultTargetName
	}

	out = strings.Join(strings.Fields(out), " ")
	out = strings.Trim(out, " .")
	if r := []rune(out); len(r) > maxTargetRunes {
		out = strings.TrimRight(string(r[:maxTargetRunes]), " .")
	}
	if out == "" || strings.Trim(out, "_") == "" {
		return defaultTargetName
	}
	return out
}

// layout is where a job's files go.
type layout struct {
	Folder    string // empty unless NamingFolder
	TextPath  string
	AudioBase string // path without extension
}

func (l layout) audioPath(ext string) string {
	if ext == "" {
		ext = "mp3"
	}
	return l.AudioBase + "." + ext
}

// planLayout picks paths for a job and creates the folder when needed.
// A numeric suffix is added if the chosen name is already taken.
func planLayout(outputDir string, naming Naming, target, jobID string, now time.Time) (layout, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return layout{}, fmt.Errorf("create output directory: %w", err)
	}

	switch naming {
	case NamingTimestamp:
		// The text file is written before the audio, whatever its extension.
		base := uniquePath(filepath.Join(outputDir, "audio_"+now.Format("20060102_150405")), ".txt")
		return layout{TextPath: base + ".txt", AudioBase: base}, nil

	case NamingUUID:
		base := filepath.Join(outputDir, jobID)
		return layout{TextPath: base + ".txt", AudioBase: base}, nil

	default:
		name := SanitizeTargetName(target) + "_" + now.Format("2006-01-02_15-04-05")
		folder := uniquePath(filepath.Join(outputDir, name), "")
		if err := os.MkdirAll(folder, 0o755); err != nil {
			return layout{}, fmt.Errorf("create job folder: %w", err)
		}
		return layout{
			Folder:    folder,
			TextPath:  filepath.Join(folder, textFileName),
			AudioBase: filepath.Join(folder, audioFileBase),
		}, nil
	}
}

func uniquePath(base, ext string) string {
	candidate := base
	for i := 2; ; i++ {
		if _, err := os.Stat(candidate + ext); errors.Is(err, os.ErrNotExist) {
			return candidate
		}
		candidate = fmt.Sprintf("%s_%d", base, i)
	}
}

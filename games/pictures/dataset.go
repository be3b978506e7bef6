/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package pictures

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/spf13/afero"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var separators = regexp.MustCompile(`[_-]+`)

var imageExtensions = map[string]bool{
	".avif": true,
	".bmp":  true,
	".gif":  true,
	".jpeg": true,
	".jpg":  true,
	".png":  true,
	".svg":  true,
	".webp": true,
}

// lower builds a fresh Caser per call. Casers are not safe for concurrent
// use.
func lower(s string) string {
	return cases.Lower(language.Und).String(s)
}

// Entry is one image asset and the answer it stands for.
type Entry struct {
	ID     int
	Answer string
	Asset  string
}

// Dataset is the ordered set of entries a session is built from.
type Dataset struct {
	Entries     []Entry
	Fingerprint string
}

// AnswerFromFilename derives the expected answer from an asset filename:
// the extension is dropped, runs of '_' and '-' become one space, and the
// result is trimmed and lowercased.
func AnswerFromFilename(name string) string {
	base := filepath.Base(name)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = separators.ReplaceAllString(base, " ")

	return lower(strings.TrimSpace(base))
}

// IsImage reports whether name has a recognised image extension.
func IsImage(name string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(name))]
}

// NewDataset sorts assets by derived answer and numbers them from 1.
func NewDataset(assets []string) Dataset {
	entries := make([]Entry, 0, len(assets))
	for _, a := range assets {
		entries = append(entries, Entry{
			Answer: AnswerFromFilename(a),
			Asset:  a,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		ai, aj := lower(entries[i].Answer), lower(entries[j].Answer)
		if ai != aj {
			return ai < aj
		}
		return entries[i].Asset < entries[j].Asset
	})

	for i := range entries {
		entries[i].ID = i + 1
	}

	return Dataset{
		Entries:     entries,
		Fingerprint: Fingerprint(entries),
	}
}

// Fingerprint digests the ordered (answer, asset) pairs.
func Fingerprint(entries []Entry) string {
	d := xxhash.New()
	for _, e := range entries {
		_, _ = d.WriteString(e.Answer)
		_, _ = d.WriteString("\x00")
		_, _ = d.WriteString(e.Asset)
		_, _ = d.WriteString("\n")
	}

	return fmt.Sprintf("%016x", d.Sum64())
}

// LoadDataset reads the image files directly inside dir. Hidden files,
// directories and non-image files are skipped.
func LoadDataset(fs afero.Fs, dir string) (Dataset, error) {
	infos, err := afero.ReadDir(fs, dir)
	if err != nil {
		return Dataset{}, fmt.Errorf("read image directory %q: %w", dir, err)
	}

	assets := make([]string, 0, len(infos))
	for _, info := range infos {
		name := info.Name()
		if info.IsDir() || strings.HasPrefix(name, ".") || !IsImage(name) {
			continue
		}
		if AnswerFromFilename(name) == "" {
			continue
		}
		assets = append(assets, name)
	}

	return NewDataset(assets), nil
}

// Entry returns the entry with the given id.
func (d Dataset) Entry(id int) (Entry, bool) {
	if id < 1 || id > len(d.Entries) {
		return Entry{}, false
	}
	e := d.Entries[id-1]
	return e, e.ID == id
}

// String describes the dataset for log lines.
func (d Dataset) String() string {
	return strconv.Itoa(len(d.Entries)) + " images, fingerprint " + d.Fingerprint
}

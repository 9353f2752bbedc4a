// Package dictionary holds the word lists used to draw secret words and validate guesses.
//
// A Provider is built once at startup and is read-only afterwards, so it is shared by all
// requests without locking.
package dictionary

import (
	"bufio"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/samber/lo"

	"example.com/wordle-versus/internal/apperr"
	"example.com/wordle-versus/internal/random"
)

//go:embed lists/*.txt
var embeddedLists embed.FS

// GameConfig is the per-length client configuration.
type GameConfig struct {
	ExtraAttempts int `json:"extraAttempts"`
}

// DefaultConfigs are used for lengths without an explicit config.
var DefaultConfigs = map[int]GameConfig{
	4: {ExtraAttempts: 6},
	5: {ExtraAttempts: 5},
}

const fallbackExtraAttempts = 5

// Entry is the dictionary for one word length.
type Entry struct {
	Length   int
	Common   []string // secret words are drawn from here
	Accepted []string // superset of Common, used to validate guesses
	Config   GameConfig

	accepted map[string]struct{}
}

type Provider struct {
	entries map[int]*Entry
	lengths []int
	rnd     random.Random
}

var fileRe = regexp.MustCompile(`^(words|accepted)-(\d+)\.txt$`)

// LoadDefault builds a provider from the embedded lists, extended by the lists found in dir
// (if non-empty). Files are named words-<n>.txt and accepted-<n>.txt, one word per line.
func LoadDefault(dir string, rnd random.Random) (*Provider, error) {
	lists, err := readLists(embeddedLists, "lists")
	if err != nil {
		return nil, fmt.Errorf("embedded lists: %w", err)
	}

	if dir != "" {
		extra, err := readLists(os.DirFS(dir), ".")
		if err != nil {
			return nil, fmt.Errorf("dictionary dir %s: %w", dir, err)
		}
		for n, l := range extra {
			cur := lists[n]
			cur.common = append(cur.common, l.common...)
			cur.accepted = append(cur.accepted, l.accepted...)
			lists[n] = cur
		}
	}

	entries := make([]Entry, 0, len(lists))
	for n, l := range lists {
		cfg, ok := DefaultConfigs[n]
		if !ok {
			cfg = GameConfig{ExtraAttempts: fallbackExtraAttempts}
		}
		entries = append(entries, Entry{Length: n, Common: l.common, Accepted: l.accepted, Config: cfg})
	}
	return New(rnd, entries...)
}

// New validates and normalizes entries. Words are upper-cased and de-duplicated, words of the
// wrong length are dropped, and Accepted is extended with every Common word.
func New(rnd random.Random, entries ...Entry) (*Provider, error) {
	if rnd == nil {
		rnd = random.New()
	}
	p := &Provider{entries: make(map[int]*Entry, len(entries)), rnd: rnd}

	for _, e := range entries {
		if e.Length <= 0 {
			return nil, fmt.Errorf("invalid word length %d", e.Length)
		}
		if _, dup := p.entries[e.Length]; dup {
			return nil, fmt.Errorf("duplicate dictionary for length %d", e.Length)
		}
		if e.Config.ExtraAttempts < 0 {
			return nil, fmt.Errorf("length %d: extraAttempts must be >= 0", e.Length)
		}

		common := normalize(e.Common, e.Length)
		if len(common) == 0 {
			return nil, fmt.Errorf("length %d: no common words", e.Length)
		}
		accepted := lo.Uniq(append(normalize(e.Accepted, e.Length), common...))
		slices.Sort(accepted)

		entry := &Entry{
			Length:   e.Length,
			Common:   common,
			Accepted: accepted,
			Config:   e.Config,
			accepted: lo.SliceToMap(accepted, func(w string) (string, struct{}) { return w, struct{}{} }),
		}
		p.entries[e.Length] = entry
		p.lengths = append(p.lengths, e.Length)
	}
	if len(p.entries) == 0 {
		return nil, errors.New("no dictionaries")
	}
	slices.Sort(p.lengths)
	return p, nil
}

// AvailableLengths returns the supported word lengths in ascending order.
func (p *Provider) AvailableLengths() []int {
	return slices.Clone(p.lengths)
}

func (p *Provider) Supports(length int) bool {
	_, ok := p.entries[length]
	return ok
}

// Words returns the common list, or the accepted list when rare is set.
func (p *Provider) Words(length int, rare bool) ([]string, error) {
	e, err := p.entry(length)
	if err != nil {
		return nil, err
	}
	if rare {
		return slices.Clone(e.Accepted), nil
	}
	return slices.Clone(e.Common), nil
}

func (p *Provider) Config(length int) (GameConfig, error) {
	e, err := p.entry(length)
	if err != nil {
		return GameConfig{}, err
	}
	return e.Config, nil
}

// RandomCommon draws one common word of the given length uniformly.
func (p *Provider) RandomCommon(length int) (string, error) {
	e, err := p.entry(length)
	if err != nil {
		return "", err
	}
	return e.Common[p.rnd.Intn(len(e.Common))], nil
}

// IsAccepted reports whether word (any case) is a valid guess for length.
func (p *Provider) IsAccepted(length int, word string) bool {
	e, ok := p.entries[length]
	if !ok {
		return false
	}
	_, ok = e.accepted[strings.ToUpper(strings.TrimSpace(word))]
	return ok
}

func (p *Provider) IsCommon(length int, word string) bool {
	e, ok := p.entries[length]
	if !ok {
		return false
	}
	return slices.Contains(e.Common, strings.ToUpper(word))
}

func (p *Provider) entry(length int) (*Entry, error) {
	e, ok := p.entries[length]
	if !ok {
		return nil, apperr.Newf(apperr.KindInvalidArgument, "no dictionary for %d-letter words (available: %s)",
			length, strings.Join(lo.Map(p.lengths, func(n int, _ int) string { return strconv.Itoa(n) }), ", "))
	}
	return e, nil
}

func normalize(words []string, length int) []string {
	out := lo.FilterMap(words, func(w string, _ int) (string, bool) {
		w = strings.ToUpper(strings.TrimSpace(w))
		if utf8.RuneCountInString(w) != length {
			return "", false
		}
		for _, r := range w {
			if !unicode.IsLetter(r) {
				return "", false
			}
		}
		return w, true
	})
	return lo.Uniq(out)
}

type rawLists struct {
	common   []string
	accepted []string
}

func readLists(fsys fs.FS, dir string) (map[int]rawLists, error) {
	des, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}

	out := make(map[int]rawLists)
	for _, de := range des {
		if de.IsDir() {
			continue
		}
		m := fileRe.FindStringSubmatch(de.Name())
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[2])

		words, err := readWords(fsys, path.Join(dir, de.Name()))
		if err != nil {
			return nil, err
		}

		l := out[n]
		if m[1] == "words" {
			l.common = append(l.common, words...)
		} else {
			l.accepted = append(l.accepted, words...)
		}
		out[n] = l
	}
	return out, nil
}

func readWords(fsys fs.FS, name string) ([]string, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var words []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		w := strings.TrimSpace(sc.Text())
		if w == "" || strings.HasPrefix(w, "#") {
			continue
		}
		words = append(words, w)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return words, nil
}

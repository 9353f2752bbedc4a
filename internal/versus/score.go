package versus

import "unicode"

// LetterState is the per-tile result of a guess.
type LetterState string

const (
	LetterCorrect LetterState = "correct"
	LetterPresent LetterState = "present"
	LetterAbsent  LetterState = "absent"
)

// Score compares a guess against the secret letter by letter, ignoring case.
// Repeated letters are counted as a multiset: a letter is only "present" as many times as
// it occurs in the secret outside of exact hits.
func Score(secret, guess string) []LetterState {
	s, g := foldRunes(secret), foldRunes(guess)
	out := make([]LetterState, len(s))
	if len(g) != len(s) {
		return out
	}

	// exact hits
	remaining := make(map[rune]int, len(s))
	for i := range s {
		if s[i] == g[i] {
			out[i] = LetterCorrect
			continue
		}
		remaining[s[i]]++
	}

	for i := range g {
		if out[i] == LetterCorrect {
			continue
		}
		if remaining[g[i]] > 0 {
			remaining[g[i]]--
			out[i] = LetterPresent
		} else {
			out[i] = LetterAbsent
		}
	}
	return out
}

func foldRunes(w string) []rune {
	rs := []rune(w)
	for i, r := range rs {
		rs[i] = unicode.ToUpper(r)
	}
	return rs
}

func scoreAll(secret string, guesses []string) [][]LetterState {
	out := make([][]LetterState, 0, len(guesses))
	for _, g := range guesses {
		out = append(out, Score(secret, g))
	}
	return out
}

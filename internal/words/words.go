// internal/words/words.go
//
// Provides the word list the game picks its challenges from.
//
// Responsibilities:
//   - Load the list from an environment-provided file or fall back to the embedded default.
//   - Validate that the list is usable (non-empty) before any session starts.
//   - Pick words uniformly at random.
//
// File format:
//   - One word per line.
//   - Surrounding whitespace trimmed; blank lines and "#" comments skipped.
//   - Case is preserved: matching in the game is case-sensitive.

package words

import (
	"bufio"
	"crypto/rand"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"
)

// --- embedded default (server runs without any file configured) ---

//go:embed default_words.txt
var embeddedWords string

// ErrEmpty is returned when a word list has no usable entries.
var ErrEmpty = errors.New("words: list is empty")

// List is an ordered, immutable sequence of challenge words.
type List []string

// Default returns the compiled-in list.
func Default() List {
	l, _ := parse(strings.NewReader(embeddedWords))
	return l
}

// Load reads the list from path, or returns the default list if path is empty.
// Returns ErrEmpty (wrapped) if the resulting list has no words.
func Load(path string) (List, error) {
	if path == "" {
		l := Default()
		return l, l.Validate()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open word file: %w", err)
	}
	defer f.Close()

	l, err := parse(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if err := l.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return l, nil
}

// parse keeps one trimmed word per non-comment line.
func parse(r io.Reader) (List, error) {
	var out List
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		w := strings.TrimSpace(sc.Text())
		if w == "" || strings.HasPrefix(w, "#") {
			continue
		}
		out = append(out, w)
	}
	return out, sc.Err()
}

// Validate reports ErrEmpty for an empty list.
func (l List) Validate() error {
	if len(l) == 0 {
		return ErrEmpty
	}
	return nil
}

// Random returns a cryptographically random word from the list.
// The list must be non-empty.
func (l List) Random() string {
	return l[RandomIndex(len(l))]
}

// RandomIndex returns a uniform index in [0, n) using crypto/rand.
func RandomIndex(n int) int {
	if n <= 1 {
		return 0
	}
	nBig, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(nBig.Int64())
}

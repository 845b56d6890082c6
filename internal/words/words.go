// Package words provides the word source: a vocabulary of phrases and the
// shuffle that turns it into a game's fixed word sequence.
package words

import (
	_ "embed"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed words.yaml
var defaultVocabularyYAML []byte

type vocabularyFile struct {
	Words []string `yaml:"words"`
}

// Source produces the ordered word sequence for a game. Shuffle is called
// exactly once per game, at start.
type Source interface {
	Shuffle(rng *rand.Rand) []string
}

// Vocabulary is a fixed set of phrases backing a Source.
type Vocabulary struct {
	words []string
}

// Default returns the embedded vocabulary.
func Default() (*Vocabulary, error) {
	return parse(defaultVocabularyYAML)
}

// Load reads a vocabulary from a YAML file of the form `words: [...]`.
func Load(path string) (*Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read vocabulary file: %w", err)
	}
	return parse(data)
}

func parse(data []byte) (*Vocabulary, error) {
	var file vocabularyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse vocabulary: %w", err)
	}

	words := make([]string, 0, len(file.Words))
	seen := make(map[string]struct{}, len(file.Words))
	for _, w := range file.Words {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		key := strings.ToLower(w)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		words = append(words, w)
	}
	if len(words) == 0 {
		return nil, errors.New("vocabulary is empty")
	}
	return &Vocabulary{words: words}, nil
}

// Len returns the number of distinct phrases.
func (v *Vocabulary) Len() int {
	return len(v.words)
}

// Shuffle returns a newly shuffled copy of the vocabulary.
func (v *Vocabulary) Shuffle(rng *rand.Rand) []string {
	out := append([]string(nil), v.words...)
	rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}

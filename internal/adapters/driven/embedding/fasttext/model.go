// Package fasttext provides embeddings from fastText crawl word vectors.
//
// Models are the text (.vec) distribution of the Common Crawl vectors,
// cc.<lang>.300.vec.gz. A sentence vector is the mean of the L2-normalised
// vectors of its known words, matching fastText's own sentence vectors for
// in-vocabulary words. Subword information is not available in .vec files,
// so unknown words are ignored.
package fasttext

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/custodia-labs/summaryprobs/internal/core/domain"
	"github.com/custodia-labs/summaryprobs/internal/core/ports/driven"
)

// EOS is the end-of-sentence token fastText appends to every line.
const EOS = "</s>"

// Ensure Model implements the interface.
var _ driven.Embedder = (*Model)(nil)

// Model holds unit-length word vectors for one language.
type Model struct {
	name  string
	dim   int
	words map[string][]float32
}

// NewModel creates a model from word vectors. Vectors are normalised on
// the way in; zero vectors are dropped.
func NewModel(name string, dim int, words map[string][]float32) (*Model, error) {
	m := &Model{name: name, dim: dim, words: make(map[string][]float32, len(words))}
	for word, vec := range words {
		if err := m.add(word, vec); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Model) add(word string, vec []float32) error {
	if len(vec) != m.dim {
		return fmt.Errorf("%w: word %q has %d dimensions, want %d",
			domain.ErrDimensionMismatch, word, len(vec), m.dim)
	}
	var sum float64
	for _, x := range vec {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return nil
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range vec {
		vec[i] *= inv
	}
	m.words[word] = vec
	return nil
}

// LoadVec reads the fastText text format: a "<count> <dim>" header followed
// by one "<word> <x1> ... <xdim>" line per word. maxWords > 0 stops after
// that many words; .vec files are sorted by frequency.
func LoadVec(ctx context.Context, name string, r io.Reader, maxWords int) (*Model, error) {
	br := bufio.NewReaderSize(r, 1<<20)

	header, err := br.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	fields := strings.Fields(header)
	if len(fields) != 2 {
		return nil, fmt.Errorf("malformed header %q", strings.TrimSpace(header))
	}
	count, err := strconv.Atoi(fields[0])
	if err != nil {
		return nil, fmt.Errorf("malformed word count: %w", err)
	}
	dim, err := strconv.Atoi(fields[1])
	if err != nil || dim <= 0 {
		return nil, fmt.Errorf("malformed dimension %q", fields[1])
	}

	if maxWords > 0 && maxWords < count {
		count = maxWords
	}
	m := &Model{name: name, dim: dim, words: make(map[string][]float32, count)}

	for line := 1; line <= count; line++ {
		if line%10_000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		text, err := br.ReadString('\n')
		if err == io.EOF && text == "" {
			break
		}
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("reading line %d: %w", line+1, err)
		}

		word, vec, err := parseLine(text, dim)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line+1, err)
		}
		if err := m.add(word, vec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line+1, err)
		}
	}

	if len(m.words) == 0 {
		return nil, fmt.Errorf("no word vectors in %s", name)
	}
	return m, nil
}

func parseLine(line string, dim int) (string, []float32, error) {
	fields := tokens(line)
	if len(fields) < dim+1 {
		return "", nil, fmt.Errorf("got %d values, want %d", max(len(fields)-1, 0), dim)
	}

	// The last dim fields are the vector, anything before them is the word.
	split := len(fields) - dim
	vec := make([]float32, dim)
	for i, f := range fields[split:] {
		x, err := strconv.ParseFloat(f, 32)
		if err != nil {
			return "", nil, fmt.Errorf("parsing value %d: %w", i, err)
		}
		vec[i] = float32(x)
	}
	return strings.Join(fields[:split], " "), vec, nil
}

// tokens splits s the way fastText does: on ASCII whitespace only.
// Words may contain any other byte, including Unicode spaces.
func tokens(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		switch r {
		case ' ', '\t', '\n', '\v', '\f', '\r', 0:
			return true
		}
		return false
	})
}

// Embed returns the sentence vector of text. A text with no known words
// yields a zero vector, which scores as undefined downstream.
func (m *Model) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.words == nil {
		return nil, fmt.Errorf("%w: model %s is closed", domain.ErrEmbeddingUnavailable, m.name)
	}

	sum := make([]float64, m.dim)
	n := 0
	accumulate := func(word string) {
		vec, ok := m.words[word]
		if !ok {
			return
		}
		for i, x := range vec {
			sum[i] += float64(x)
		}
		n++
	}
	for _, word := range tokens(text) {
		accumulate(word)
	}
	accumulate(EOS)

	out := make([]float32, m.dim)
	if n == 0 {
		return out, nil
	}
	for i, x := range sum {
		out[i] = float32(x / float64(n))
	}
	return out, nil
}

// Dimensions returns the embedding vector size.
func (m *Model) Dimensions() int {
	return m.dim
}

// ModelName returns the model file stem, e.g. "cc.en.300".
func (m *Model) ModelName() string {
	return m.name
}

// Words returns the number of loaded word vectors.
func (m *Model) Words() int {
	return len(m.words)
}

// Close drops the word vectors.
func (m *Model) Close() error {
	m.words = nil
	return nil
}

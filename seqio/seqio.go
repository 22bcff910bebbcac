// Package seqio loads raw token corpora into seq.Buffer sequences, the
// way bayselm.DataContainer turns a text file into sampling-ready word
// sequences. Where DataContainer works over a fixed string alphabet
// implicitly (each token is its own "word"), Alphabet here makes that
// mapping explicit and persistable, since seq.Sequence only ever holds
// small integer Symbols.
package seqio

import (
	"bufio"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/tomoris/hpypseq/seq"
)

// Alphabet is a bidirectional mapping between raw string tokens and the
// small-integer Symbols a context tree indexes by.
type Alphabet struct {
	toSymbol map[string]seq.Symbol
	toToken  []string
}

// NewAlphabet returns an empty, growable Alphabet.
func NewAlphabet() *Alphabet {
	return &Alphabet{toSymbol: make(map[string]seq.Symbol)}
}

// Intern returns tok's Symbol, assigning it the next unused Symbol value
// the first time tok is seen.
func (a *Alphabet) Intern(tok string) seq.Symbol {
	if s, ok := a.toSymbol[tok]; ok {
		return s
	}
	s := seq.Symbol(len(a.toToken))
	a.toSymbol[tok] = s
	a.toToken = append(a.toToken, tok)
	return s
}

// Lookup returns tok's Symbol without growing the alphabet.
func (a *Alphabet) Lookup(tok string) (seq.Symbol, bool) {
	s, ok := a.toSymbol[tok]
	return s, ok
}

// Token returns the string token for s.
func (a *Alphabet) Token(s seq.Symbol) string {
	if int(s) < 0 || int(s) >= len(a.toToken) {
		panic(fmt.Sprintf("seqio: Token: symbol %d out of range [0,%d)", s, len(a.toToken)))
	}
	return a.toToken[s]
}

// NumTypes returns the number of distinct tokens interned so far.
func (a *Alphabet) NumTypes() int { return len(a.toToken) }

type alphabetManifest struct {
	Tokens []string `json:"tokens"`
}

// SaveAlphabet writes a's token list to path as JSON, so a later load can
// reuse an identical Symbol assignment (required when a trained model's
// tree is later queried against fresh text).
func SaveAlphabet(a *Alphabet, path string) {
	f, err := os.Create(path)
	if err != nil {
		panic(fmt.Sprintf("seqio: SaveAlphabet: cannot create %v: %v", path, err))
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(alphabetManifest{Tokens: a.toToken}); err != nil {
		panic(fmt.Sprintf("seqio: SaveAlphabet: cannot encode %v: %v", path, err))
	}
}

// LoadAlphabet reads a manifest written by SaveAlphabet.
func LoadAlphabet(path string) *Alphabet {
	f, err := os.Open(path)
	if err != nil {
		panic(fmt.Sprintf("seqio: LoadAlphabet: cannot open %v: %v", path, err))
	}
	defer f.Close()

	var manifest alphabetManifest
	if err := json.NewDecoder(f).Decode(&manifest); err != nil {
		panic(fmt.Sprintf("seqio: LoadAlphabet: cannot decode %v: %v", path, err))
	}
	a := NewAlphabet()
	for _, tok := range manifest.Tokens {
		a.Intern(tok)
	}
	return a
}

// LoadedSequence is a named, loaded symbol sequence plus the alphabet it
// was interned against. The ULID lets a process distinguish several
// loads (cmd/hpypseq's train command prints it), the way
// rcliao-agent-memory stamps memory records.
type LoadedSequence struct {
	ID       ulid.ULID
	Name     string
	Alphabet *Alphabet
	Buffer   *seq.Buffer
}

func newULID() ulid.ULID {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader)
}

// LoadFromFile reads filePath line by line, splits each line on splitter,
// interns every resulting token into a fresh Alphabet, and appends the
// resulting Symbols to one seq.Buffer — the single-sequence analogue of
// bayselm.NewDataContainer, generalized from "one sentence per line" to
// "one continuous symbol stream".
func LoadFromFile(filePath, splitter string) *LoadedSequence {
	return LoadFromFileWithAlphabet(filePath, splitter, NewAlphabet())
}

// LoadFromFileWithAlphabet is LoadFromFile against a caller-supplied
// Alphabet, growing it with any newly seen tokens. Passing an alphabet
// loaded from a training run keeps Symbol assignments consistent between
// training and later prediction/evaluation passes.
func LoadFromFileWithAlphabet(filePath, splitter string, alphabet *Alphabet) *LoadedSequence {
	f, err := os.Open(filePath)
	if err != nil {
		panic(fmt.Sprintf("seqio: LoadFromFile: cannot open %v: %v", filePath, err))
	}
	defer f.Close()

	tokens := make([]string, 0, 1024)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if err := sc.Err(); err != nil {
			panic(fmt.Sprintf("seqio: LoadFromFile: read error in %v: %v", filePath, err))
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		for _, tok := range strings.Split(line, splitter) {
			if tok != "" {
				tokens = append(tokens, tok)
			}
		}
	}
	return loadTokens(filePath, tokens, alphabet)
}

// LoadFromTokens builds a LoadedSequence directly from an in-memory token
// list, named name, without touching the filesystem.
func LoadFromTokens(name string, tokens []string, alphabet *Alphabet) *LoadedSequence {
	return loadTokens(name, tokens, alphabet)
}

func loadTokens(name string, tokens []string, alphabet *Alphabet) *LoadedSequence {
	buf := seq.NewBuffer(maxInt(alphabet.NumTypes(), 1))
	for _, tok := range tokens {
		s := alphabet.Intern(tok)
		if int(s) >= buf.NumTypes() {
			buf = growBuffer(buf, alphabet.NumTypes())
		}
		buf.Append(s)
	}
	if alphabet.NumTypes() > 0 && buf.NumTypes() < alphabet.NumTypes() {
		buf = growBuffer(buf, alphabet.NumTypes())
	}
	return &LoadedSequence{
		ID:       newULID(),
		Name:     name,
		Alphabet: alphabet,
		Buffer:   buf,
	}
}

// growBuffer re-creates a Buffer with a larger alphabet ceiling, copying
// over symbols already appended. seq.Buffer fixes its alphabet size at
// construction, but LoadFromFile only learns the true alphabet size while
// scanning, so the buffer is grown on demand as new tokens are interned.
func growBuffer(old *seq.Buffer, numTypes int) *seq.Buffer {
	grown := seq.NewBuffer(numTypes)
	grown.AppendAll(old.Slice(0, old.Len()))
	return grown
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

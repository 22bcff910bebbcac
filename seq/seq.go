// Package seq holds the observed data a context tree is built over: a
// small integer alphabet plus an append-only buffer implementation.
package seq

import "fmt"

// Symbol is a single observation drawn from a fixed, small alphabet.
type Symbol uint32

// Position indexes into a Sequence. Position 0 is the first observation.
type Position int

// Sequence is the read side of the data a context tree indexes. Symbols
// already appended must never change: node content comparisons address
// Sequence by position and assume immutability of everything before Len().
type Sequence interface {
	Len() Position
	At(Position) Symbol
	NumTypes() int
}

// Buffer is a slice-backed, append-only Sequence.
type Buffer struct {
	symbols  []Symbol
	numTypes int
}

// NewBuffer returns an empty Buffer over an alphabet of numTypes symbols
// (valid Symbol values are 0..numTypes-1).
func NewBuffer(numTypes int) *Buffer {
	if numTypes <= 0 {
		panic(fmt.Sprintf("seq: NewBuffer: numTypes must be positive, got %d", numTypes))
	}
	return &Buffer{numTypes: numTypes}
}

// Append adds s to the end of the buffer.
func (b *Buffer) Append(s Symbol) {
	if int(s) >= b.numTypes {
		panic(fmt.Sprintf("seq: Append: symbol %d out of range [0,%d)", s, b.numTypes))
	}
	b.symbols = append(b.symbols, s)
}

// AppendAll appends every symbol in ss, in order.
func (b *Buffer) AppendAll(ss []Symbol) {
	for _, s := range ss {
		b.Append(s)
	}
}

func (b *Buffer) Len() Position { return Position(len(b.symbols)) }

func (b *Buffer) At(p Position) Symbol {
	if p < 0 || p >= b.Len() {
		panic(fmt.Sprintf("seq: At: position %d out of range [0,%d)", p, b.Len()))
	}
	return b.symbols[p]
}

func (b *Buffer) NumTypes() int { return b.numTypes }

// Slice returns the symbols in [start, stop) as a fresh slice.
func (b *Buffer) Slice(start, stop Position) []Symbol {
	out := make([]Symbol, stop-start)
	copy(out, b.symbols[start:stop])
	return out
}

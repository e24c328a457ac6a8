package models

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"

	dErrors "boxoffice/pkg/domain-errors"
)

// Alphabet omits 0, O, 1, I and L so codes survive being read aloud.
const Alphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const (
	codeSymbols = 12
	groupSize   = 4
	separator   = '-'
	// bytes at or above this value are discarded to keep the draw unbiased
	rejectAbove = 256 - 256%len(Alphabet)
)

// CodeLength is the formatted length including separators.
const CodeLength = codeSymbols + codeSymbols/groupSize - 1

// Generator draws codes from an entropy source.
type Generator struct {
	entropy io.Reader
}

// NewGenerator uses crypto/rand when entropy is nil.
func NewGenerator(entropy io.Reader) *Generator {
	if entropy == nil {
		entropy = rand.Reader
	}
	return &Generator{entropy: entropy}
}

// Next returns a fresh code in XXXX-XXXX-XXXX form.
func (g *Generator) Next() (string, error) {
	symbols := make([]byte, 0, codeSymbols)
	buf := make([]byte, codeSymbols*2)
	for len(symbols) < codeSymbols {
		if _, err := io.ReadFull(g.entropy, buf); err != nil {
			return "", fmt.Errorf("read entropy: %w", err)
		}
		for _, b := range buf {
			if int(b) >= rejectAbove {
				continue
			}
			symbols = append(symbols, Alphabet[int(b)%len(Alphabet)])
			if len(symbols) == codeSymbols {
				break
			}
		}
	}
	return format(symbols), nil
}

func format(symbols []byte) string {
	var sb strings.Builder
	sb.Grow(CodeLength)
	for i, s := range symbols {
		if i > 0 && i%groupSize == 0 {
			sb.WriteByte(separator)
		}
		sb.WriteByte(s)
	}
	return sb.String()
}

// NormalizeCode accepts user input in any case, with or without separators
// and surrounding whitespace, and returns the canonical form.
func NormalizeCode(input string) (string, error) {
	symbols := make([]byte, 0, codeSymbols)
	for _, r := range strings.ToUpper(strings.TrimSpace(input)) {
		if r == separator || r == ' ' {
			continue
		}
		if r > 127 || !strings.ContainsRune(Alphabet, r) || len(symbols) == codeSymbols {
			return "", dErrors.New(dErrors.CodeInvalidInput, "malformed invite code")
		}
		symbols = append(symbols, byte(r))
	}
	if len(symbols) != codeSymbols {
		return "", dErrors.New(dErrors.CodeInvalidInput, "malformed invite code")
	}
	return format(symbols), nil
}

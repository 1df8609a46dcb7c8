// Package thaana decodes ASCII-transliterated Thaana into Unicode.
//
// The source registers were typeset with a font that maps Latin keys to
// Thaana glyphs following the phonetic keyboard layout. Extracted text
// therefore contains the Latin keys, in physical (left-to-right) order,
// while Thaana reads right-to-left. Decode maps every key back to its
// code point and, when asked, restores reading order by reversing the
// whole sequence first.
package thaana

import (
	"slices"
	"strings"
)

// CharacterMap maps a key of the phonetic layout to its Thaana code point.
// Characters not present pass through Decode unchanged.
type CharacterMap map[rune]rune

// phonetic is the fixed table. Do not mutate; use Lookup.
var phonetic = CharacterMap{
	'h': 0x0780, 'S': 0x0781, 'n': 0x0782, 'r': 0x0783,
	'b': 0x0784, 'L': 0x0785, 'k': 0x0786, 'a': 0x0787,
	'v': 0x0788, 'm': 0x0789, 'f': 0x078A, 'd': 0x078B,
	't': 0x078C, 'l': 0x078D, 'g': 0x078E, 'N': 0x078F,
	's': 0x0790, 'D': 0x0791, 'z': 0x0792, 'T': 0x0793,
	'y': 0x0794, 'p': 0x0795, 'j': 0x0796, 'C': 0x0797,
	'X': 0x0798, 'H': 0x0799, 'K': 0x079A, 'J': 0x079B,
	'R': 0x079C, 'x': 0x079D, 'B': 0x079E, 'F': 0x079F,
	'Y': 0x07A0, 'Z': 0x07A1, 'A': 0x07A2, 'G': 0x07A3,
	'q': 0x07A4, 'V': 0x07A5, 'w': 0x07A6, 'W': 0x07A7,
	'i': 0x07A8, 'I': 0x07A9, 'u': 0x07AA, 'U': 0x07AB,
	'e': 0x07AC, 'E': 0x07AD, 'o': 0x07AE, 'O': 0x07AF,
	'c': 0x07B0,

	// Arabic punctuation
	',': 0x060C, ';': 0x061B, '?': 0x061F,

	// Brackets are not mirrored.
	')': ')', '(': '(',

	// salla-llahu alayhi wa-sallam ligature
	'Q': 0xFDF2,
}

// Lookup returns the code point for key c and whether c is part of the layout.
func Lookup(c rune) (rune, bool) {
	r, ok := phonetic[c]
	return r, ok
}

// Keys returns the layout keys in ascending order.
func Keys() []rune {
	keys := make([]rune, 0, len(phonetic))
	for k := range phonetic {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Len returns the number of entries in the layout.
func Len() int {
	return len(phonetic)
}

// Decode converts transliterated text to Thaana.
//
// With reverse set, the entire rune sequence is reversed before mapping.
// This reverses token order as well as character order; cells holding
// several words come out in reading order only because the whole line was
// typed mirrored.
//
// Decode never fails: characters outside the layout (digits, spaces,
// hyphens) are copied as they are.
func Decode(text string, reverse bool) string {
	if text == "" {
		return ""
	}

	runes := []rune(text)
	if reverse {
		slices.Reverse(runes)
	}

	var b strings.Builder
	b.Grow(len(text) * 2)
	for _, c := range runes {
		if r, ok := phonetic[c]; ok {
			b.WriteRune(r)
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

// Reverse returns text with its runes in reverse order.
func Reverse(text string) string {
	runes := []rune(text)
	slices.Reverse(runes)
	return string(runes)
}

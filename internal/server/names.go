package server

import (
	"math/rand/v2"
	"strings"
)

const placeholderNameLength = 5

// placeholderAlphabet mixes kanji, kanji numerals, hiragana and katakana so
// that unnamed users stand out in the roster.
var placeholderAlphabet = []rune(
	"山川木花月日火水金土" +
		"あいうえおかきくけこ" +
		"一二三四五六七八九十" +
		"アイウエオカキクケコ",
)

// PlaceholderName returns a random display name for a session that has not
// chosen one. Collisions are possible and harmless.
func PlaceholderName() string {
	var b strings.Builder
	for i := 0; i < placeholderNameLength; i++ {
		b.WriteRune(placeholderAlphabet[rand.IntN(len(placeholderAlphabet))])
	}
	return b.String()
}

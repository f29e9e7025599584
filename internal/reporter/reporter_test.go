package reporter

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncateMsg(t *testing.T) {
	assert.Equal(t, "short", truncateMsg("short", 10))
	assert.Equal(t, "abcd…", truncateMsg("abcdefgh", 5))

	// Multibyte text must never be cut mid-rune.
	msg := "ордер отклонён биржей: недостаточно средств"
	got := truncateMsg(msg, 20)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, 20, len([]rune(got)))
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "0f5ae1bc", shortID("0f5ae1bc-9f1d-47a2-b330-1f2d3c4e5a6b"))
	assert.Equal(t, "tiny", shortID("tiny"))
}

package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeJSONStripsFence(t *testing.T) {
	raw := "```json\n{\"a\":1}\n```"
	assert.Equal(t, `{"a":1}`, NormalizeJSON(raw))
}

func TestNormalizeJSONStripsThinkBlock(t *testing.T) {
	raw := "<think>reasoning here</think>\n{\"a\":1}"
	assert.Equal(t, `{"a":1}`, NormalizeJSON(raw))
}

func TestNormalizeJSONStripsSelfClosingThink(t *testing.T) {
	raw := "<think/>{\"a\":1}"
	assert.Equal(t, `{"a":1}`, NormalizeJSON(raw))
}

func TestNormalizeJSONStripsBothWrappers(t *testing.T) {
	raw := "<think>x</think>\n```json\n{\"a\":1}\n```"
	assert.Equal(t, `{"a":1}`, NormalizeJSON(raw))
}

func TestNormalizeJSONPlainPassthrough(t *testing.T) {
	assert.Equal(t, `{"a":1}`, NormalizeJSON(`{"a":1}`))
}

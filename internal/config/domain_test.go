package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeArtifact(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func validArtifacts(t *testing.T, dir string) {
	writeArtifact(t, dir, "intent_keywords.json", `[{"topic":"cpu","keywords":["cpu"],"description":"d"}]`)
	writeArtifact(t, dir, "entity_patterns.json", `{"MODEL_NAME":{"patterns":["[A-Z]{2}\\d{3}"],"examples":["AG958"]},"SERIES_KEY":{"patterns":["\\d{3}"],"examples":["958"]}}`)
	writeArtifact(t, dir, "funnel.json", `{
		"features": {"cpu": {"feature_id":"cpu","prompt_text":"p","options":[{"option_id":"a","label":"l","description":"d","filters":[]}]}},
		"priorities": {"general": ["cpu"]},
		"trigger_keywords": {"vague": ["適合"], "comparison": ["比較"]}
	}`)
	writeArtifact(t, dir, "prompt_template.txt", "ctx={context} q={query}")
}

func TestLoadDomainValid(t *testing.T) {
	dir := t.TempDir()
	validArtifacts(t, dir)

	d, err := LoadDomain(dir)
	require.NoError(t, err)

	require.Len(t, d.IntentKeywords, 1)
	assert.Equal(t, "cpu", d.IntentKeywords[0].Topic)
	assert.Contains(t, d.EntityPatterns, "MODEL_NAME")
	assert.Contains(t, d.EntityPatterns, "SERIES_KEY")
	assert.Equal(t, []string{"cpu"}, d.Funnel.Priorities["general"])
	assert.Contains(t, d.PromptTemplate, "{context}")
}

func TestLoadDomainMissingEntityKindFatal(t *testing.T) {
	dir := t.TempDir()
	validArtifacts(t, dir)
	writeArtifact(t, dir, "entity_patterns.json", `{"MODEL_NAME":{"patterns":["[A-Z]{2}\\d{3}"]}}`)

	_, err := LoadDomain(dir)
	assert.Error(t, err)
}

func TestLoadDomainPriorityReferencesUnknownFeatureFatal(t *testing.T) {
	dir := t.TempDir()
	validArtifacts(t, dir)
	writeArtifact(t, dir, "funnel.json", `{
		"features": {"cpu": {"feature_id":"cpu","prompt_text":"p","options":[]}},
		"priorities": {"general": ["gpu"]},
		"trigger_keywords": {"vague": [], "comparison": []}
	}`)

	_, err := LoadDomain(dir)
	assert.Error(t, err)
}

func TestLoadDomainPromptTemplateMissingPlaceholderFatal(t *testing.T) {
	dir := t.TempDir()
	validArtifacts(t, dir)
	writeArtifact(t, dir, "prompt_template.txt", "no placeholders here")

	_, err := LoadDomain(dir)
	assert.Error(t, err)
}

func TestLoadDomainEmptyIntentKeywordsDegradesGracefully(t *testing.T) {
	dir := t.TempDir()
	validArtifacts(t, dir)
	writeArtifact(t, dir, "intent_keywords.json", "")

	d, err := LoadDomain(dir)
	require.NoError(t, err)
	assert.Empty(t, d.IntentKeywords)
}

func TestLoadDomainInvalidRegexDroppedNotFatal(t *testing.T) {
	dir := t.TempDir()
	validArtifacts(t, dir)
	writeArtifact(t, dir, "entity_patterns.json", `{
		"MODEL_NAME":{"patterns":["[A-Z]{2}\\d{3}", "(unclosed"],"examples":["AG958"]},
		"SERIES_KEY":{"patterns":["\\d{3}"],"examples":["958"]}
	}`)

	d, err := LoadDomain(dir)
	require.NoError(t, err)
	assert.Len(t, d.EntityPatterns["MODEL_NAME"].Regexes, 1)
}

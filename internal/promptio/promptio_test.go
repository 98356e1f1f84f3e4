package promptio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xrick/laptop-funnel-dialogue/internal/models"
)

func TestBuildSubstitutesPlaceholders(t *testing.T) {
	b := NewBuilder("CTX:{context}\nQ:{query}", 50)
	rows := []models.SKU{{Name: "AG958", Series: "958", Fields: map[string]string{"cpu": "i7"}}}
	out := b.Build(models.Intent{Topic: "cpu", Shape: models.ShapeSpecificModel, RawQuery: "AG958 cpu?"}, rows, []string{"AG958"}, nil)
	assert.Contains(t, out, "Q:AG958 cpu?")
	assert.Contains(t, out, "AG958")
	assert.Contains(t, out, "cpu=i7")
}

func TestParseStripsThinkBlock(t *testing.T) {
	p := NewParser(50, []string{"AG958"})
	reply := `<think>internal reasoning here</think>{"summary": "ok", "table": []}`
	out, err := p.Parse(reply)
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Summary)
	assert.Empty(t, out.Table)
}

func TestParseCanonicalTableShape(t *testing.T) {
	p := NewParser(50, []string{"AG958", "APX958"})
	reply := `{"summary": "compare", "table": [{"feature": "cpu", "AG958": "i7", "APX958": "i9"}]}`
	out, err := p.Parse(reply)
	require.NoError(t, err)
	require.Len(t, out.Table, 1)
	assert.Equal(t, "cpu", out.Table[0]["feature"])
	assert.Equal(t, "i7", out.Table[0]["AG958"])
	assert.Equal(t, "i9", out.Table[0]["APX958"])
}

func TestParseTransposedTableShape(t *testing.T) {
	p := NewParser(50, []string{"AG958", "APX958"})
	reply := `{"summary": "compare", "table": {"Feature": ["cpu"], "AG958": ["i7"], "APX958": ["i9"]}}`
	out, err := p.Parse(reply)
	require.NoError(t, err)
	require.Len(t, out.Table, 1)
	assert.Equal(t, "i7", out.Table[0]["AG958"])
}

func TestParseSingleRowDictShape(t *testing.T) {
	p := NewParser(50, []string{"AG958"})
	reply := `{"summary": "one model", "table": {"feature": "cpu", "AG958": "i7"}}`
	out, err := p.Parse(reply)
	require.NoError(t, err)
	require.Len(t, out.Table, 1)
	assert.Equal(t, "i7", out.Table[0]["AG958"])
}

func TestParseMissingFieldFillsNA(t *testing.T) {
	p := NewParser(50, []string{"AG958", "APX958"})
	reply := `{"summary": "s", "table": [{"feature": "cpu", "AG958": "i7"}]}`
	out, err := p.Parse(reply)
	require.NoError(t, err)
	assert.Equal(t, "N/A", out.Table[0]["APX958"])
}

func TestParseRepairsUnquotedKeysAndTrailingCommas(t *testing.T) {
	p := NewParser(50, []string{"AG958"})
	reply := "{summary: \"s\", table: [{feature: \"cpu\", AG958: \"i7\",},],}"
	out, err := p.Parse(reply)
	require.NoError(t, err)
	assert.Equal(t, "s", out.Summary)
	require.Len(t, out.Table, 1)
}

func TestParseRepairsSingleQuotes(t *testing.T) {
	p := NewParser(50, []string{"AG958"})
	reply := `{'summary': 'ok', 'table': []}`
	out, err := p.Parse(reply)
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Summary)
}

func TestParseNoJSONObjectFails(t *testing.T) {
	p := NewParser(50, nil)
	_, err := p.Parse("no braces here at all")
	assert.ErrorIs(t, err, ErrNoJSONObject)
}

func TestParseTruncatesLongValues(t *testing.T) {
	p := NewParser(5, []string{"AG958"})
	reply := `{"summary": "s", "table": [{"feature": "cpu", "AG958": "a very long value"}]}`
	out, err := p.Parse(reply)
	require.NoError(t, err)
	assert.Equal(t, "a ver…", out.Table[0]["AG958"])
}

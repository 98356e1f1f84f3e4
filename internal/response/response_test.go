package response

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xrick/laptop-funnel-dialogue/internal/models"
)

func TestShapePassesThroughOnSuccess(t *testing.T) {
	parsed := models.Response{Summary: "ok", Table: []models.Row{{"feature": "cpu"}}}
	assert.Equal(t, parsed, Shape(parsed))
}

func TestDataUnavailableIsProseOnly(t *testing.T) {
	out := DataUnavailable("gpu", []string{"CR412"})
	assert.Contains(t, out.Summary, "gpu")
	assert.Contains(t, out.Summary, "CR412")
	assert.Empty(t, out.Table)
}

func TestFallbackSingleTopicField(t *testing.T) {
	rows := []models.SKU{
		{Name: "AG958", Fields: map[string]string{"cpu": "i7"}},
		{Name: "APX958", Fields: map[string]string{"cpu": "i9"}},
	}
	out := Fallback("cpu", rows, []string{"AG958", "APX958"})
	assert.Contains(t, out.Summary, "without LLM analysis")
	assert.Len(t, out.Table, 1)
	assert.Equal(t, "cpu", out.Table[0]["feature"])
	assert.Equal(t, "i7", out.Table[0]["AG958"])
	assert.Equal(t, "i9", out.Table[0]["APX958"])
}

func TestFallbackComparisonUsesAllCanonicalFields(t *testing.T) {
	rows := []models.SKU{{Name: "AG958", Fields: map[string]string{"cpu": "i7"}}}
	out := Fallback("comparison", rows, []string{"AG958"})
	assert.Len(t, out.Table, len(models.CanonicalFields))
}

func TestFallbackMissingFieldIsNA(t *testing.T) {
	rows := []models.SKU{{Name: "AG958", Fields: map[string]string{}}}
	out := Fallback("cpu", rows, []string{"AG958"})
	assert.Equal(t, "N/A", out.Table[0]["AG958"])
}

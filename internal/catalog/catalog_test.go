package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xrick/laptop-funnel-dialogue/internal/models"
)

func testRows() []models.SKU {
	return []models.SKU{
		{Name: "AG958", Series: "958", Fields: map[string]string{"cpu": "i7"}},
		{Name: "APX958: FP7R2", Series: "958", Fields: map[string]string{"cpu": "Ryzen 9"}},
		{Name: "AB819", Series: "819", Fields: map[string]string{"cpu": "i5"}},
		{Name: "Test Model", Series: "000", Fields: map[string]string{}},
		{Name: "", Series: "", Fields: map[string]string{}},
	}
}

func TestNewStaticFiltersTestAndEmptyRows(t *testing.T) {
	c, err := NewStatic(testRows())
	require.NoError(t, err)

	assert.Len(t, c.Names(), 3)
	_, hasTest := c.Names()["Test Model"]
	assert.False(t, hasTest)
}

func TestByNamePreservesInputOrderAndSkipsUnknown(t *testing.T) {
	c, err := NewStatic(testRows())
	require.NoError(t, err)

	rows := c.ByName(context.Background(), []string{"AB819", "nonexistent", "AG958"})
	require.Len(t, rows, 2)
	assert.Equal(t, "AB819", rows[0].Name)
	assert.Equal(t, "AG958", rows[1].Name)
}

func TestBySeriesOrderedByName(t *testing.T) {
	c, err := NewStatic(testRows())
	require.NoError(t, err)

	rows := c.BySeries(context.Background(), []string{"958"})
	require.Len(t, rows, 2)
	assert.Equal(t, "AG958", rows[0].Name)
	assert.Equal(t, "APX958: FP7R2", rows[1].Name)
}

func TestAllIsStableAlphabetic(t *testing.T) {
	c, err := NewStatic(testRows())
	require.NoError(t, err)

	all := c.All(context.Background())
	require.Len(t, all, 3)
	assert.Equal(t, "AB819", all[0].Name)
	assert.Equal(t, "AG958", all[1].Name)
	assert.Equal(t, "APX958: FP7R2", all[2].Name)
}

func TestSeriesKeyDerivedFromLeadingDigitRun(t *testing.T) {
	assert.Equal(t, "958", leadingDigitRun("AG958"))
	assert.Equal(t, "819", leadingDigitRun("APX819: FP7R2"))
	assert.Equal(t, "", leadingDigitRun("AB"))
	assert.Equal(t, "", leadingDigitRun("AB12")) // below min length, not returned
}

func TestDuplicateModelNameRejected(t *testing.T) {
	_, err := NewStatic([]models.SKU{
		{Name: "AG958", Series: "958"},
		{Name: "AG958", Series: "958"},
	})
	assert.Error(t, err)
}

func TestSortedSeriesAndNames(t *testing.T) {
	c, err := NewStatic(testRows())
	require.NoError(t, err)

	assert.Equal(t, []string{"819", "958"}, SortedSeries(c))
	assert.Equal(t, []string{"AB819", "AG958", "APX958: FP7R2"}, SortedNames(c))
}

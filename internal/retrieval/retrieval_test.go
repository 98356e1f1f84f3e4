package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xrick/laptop-funnel-dialogue/internal/catalog"
	"github.com/xrick/laptop-funnel-dialogue/internal/models"
	"github.com/xrick/laptop-funnel-dialogue/internal/vectorstore"
)

func testCatalog(t *testing.T) catalog.Store {
	c, err := catalog.NewStatic([]models.SKU{
		{Name: "AG958", Series: "958", Fields: map[string]string{"cpu": "i7", "price": "1500"}},
		{Name: "APX958", Series: "958", Fields: map[string]string{"cpu": "i9", "price": "2200"}},
		{Name: "CR412", Series: "412", Fields: map[string]string{"cpu": "", "price": "700"}},
	})
	require.NoError(t, err)
	return c
}

func TestPlanSpecificModel(t *testing.T) {
	store := testCatalog(t)
	p := New(store, nil, 5, nil)
	plan := p.Plan(context.Background(), models.Intent{Shape: models.ShapeSpecificModel, ModelNames: []string{"AG958"}, Topic: "cpu"}, nil)
	assert.Equal(t, []string{"AG958"}, plan.TargetNames)
	assert.False(t, plan.Unavailable)
}

func TestPlanSeries(t *testing.T) {
	store := testCatalog(t)
	p := New(store, nil, 5, nil)
	plan := p.Plan(context.Background(), models.Intent{Shape: models.ShapeSeries, SeriesKeys: []string{"958"}, Topic: "general"}, nil)
	assert.ElementsMatch(t, []string{"AG958", "APX958"}, plan.TargetNames)
}

func TestPlanDataUnavailable(t *testing.T) {
	store := testCatalog(t)
	p := New(store, nil, 5, nil)
	plan := p.Plan(context.Background(), models.Intent{Shape: models.ShapeSeries, SeriesKeys: []string{"412"}, Topic: "cpu"}, nil)
	assert.True(t, plan.Unavailable)
	assert.Equal(t, "cpu", plan.UnavailField)
}

func TestPlanDisplayTopicChecksLCDFieldNotLiteralTopic(t *testing.T) {
	store := testCatalog(t)
	p := New(store, nil, 5, nil)
	// AG958/APX958 carry no "lcd" field in this fixture, but "cpu" is
	// present; the availability check must probe the aliased field
	// ("lcd"), not the literal topic name ("display").
	plan := p.Plan(context.Background(), models.Intent{Shape: models.ShapeSeries, SeriesKeys: []string{"958"}, Topic: "display"}, nil)
	assert.True(t, plan.Unavailable)
	assert.Equal(t, "display", plan.UnavailField)
}

func TestPlanPortabilityTopicHasNoAvailabilityCheck(t *testing.T) {
	store := testCatalog(t)
	p := New(store, nil, 5, nil)
	// "portability" names no single SKU field, so the check must be
	// skipped entirely rather than probing a field that never exists.
	plan := p.Plan(context.Background(), models.Intent{Shape: models.ShapeSeries, SeriesKeys: []string{"958"}, Topic: "portability"}, nil)
	assert.False(t, plan.Unavailable)
}

func TestPlanFunnelCompletionAppliesFilters(t *testing.T) {
	store := testCatalog(t)
	p := New(store, nil, 5, nil)
	filters := []models.FieldFilter{{Field: "price", Op: models.FilterLTE, Value: "2000"}}
	plan := p.Plan(context.Background(), models.Intent{Shape: models.ShapeUnknown, Topic: "general"}, filters)
	assert.ElementsMatch(t, []string{"AG958", "CR412"}, plan.TargetNames)
}

func TestPlanFunnelCompletionFallsBackToDefaultSeries(t *testing.T) {
	store := testCatalog(t)
	p := New(store, nil, 5, []string{"412"})
	filters := []models.FieldFilter{{Field: "price", Op: models.FilterGTE, Value: "999999"}}
	plan := p.Plan(context.Background(), models.Intent{Shape: models.ShapeUnknown, Topic: "general"}, filters)
	assert.Equal(t, []string{"CR412"}, plan.TargetNames)
}

func TestPlanEnrichesGeneralTopicWithVectorOrder(t *testing.T) {
	store := testCatalog(t)
	vs := vectorstore.NewMemStore(map[string][]vectorstore.Hit{
		"best laptop": {{ModelName: "APX958", Score: 0.9}, {ModelName: "AG958", Score: 0.5}},
	})
	p := New(store, vs, 5, nil)
	plan := p.Plan(context.Background(), models.Intent{Shape: models.ShapeSeries, SeriesKeys: []string{"958"}, Topic: "general", RawQuery: "best laptop"}, nil)
	assert.Equal(t, []string{"APX958", "AG958"}, plan.TargetNames)
}

func TestPlanDoesNotEnrichSingleRow(t *testing.T) {
	store := testCatalog(t)
	vs := vectorstore.NewMemStore(map[string][]vectorstore.Hit{})
	p := New(store, vs, 5, nil)
	plan := p.Plan(context.Background(), models.Intent{Shape: models.ShapeSpecificModel, ModelNames: []string{"AG958"}, Topic: "general"}, nil)
	assert.Equal(t, []string{"AG958"}, plan.TargetNames)
}

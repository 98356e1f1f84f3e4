package dialogue

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xrick/laptop-funnel-dialogue/internal/catalog"
	"github.com/xrick/laptop-funnel-dialogue/internal/config"
	"github.com/xrick/laptop-funnel-dialogue/internal/funnel"
	"github.com/xrick/laptop-funnel-dialogue/internal/intent"
	"github.com/xrick/laptop-funnel-dialogue/internal/llmclient"
	"github.com/xrick/laptop-funnel-dialogue/internal/models"
	"github.com/xrick/laptop-funnel-dialogue/internal/promptio"
	"github.com/xrick/laptop-funnel-dialogue/internal/retrieval"
	"github.com/xrick/laptop-funnel-dialogue/internal/router"
)

func testCatalogStore(t *testing.T) catalog.Store {
	c, err := catalog.NewStatic([]models.SKU{
		{Name: "AG958", Series: "958", Fields: map[string]string{"cpu": "i7"}},
		{Name: "APX958", Series: "958", Fields: map[string]string{"cpu": "i9"}},
	})
	require.NoError(t, err)
	return c
}

func testDomain() *config.Domain {
	return &config.Domain{
		IntentKeywords: []config.IntentKeyword{{Topic: "cpu", Keywords: []string{"cpu"}}},
		EntityPatterns: map[string]config.CompiledEntityPattern{
			"MODEL_NAME": {Regexes: []*regexp.Regexp{regexp.MustCompile(`[A-Z]{2,4}\d{3}`)}},
			"SERIES_KEY": {Regexes: []*regexp.Regexp{regexp.MustCompile(`\d{3,4}`)}},
		},
		Funnel: config.FunnelArtifact{
			Features: map[string]models.Question{
				"cpu": {FeatureID: "cpu", PromptText: "cpu?", Options: []models.Option{
					{OptionID: "cpu_heavy", Label: "heavy", Filters: []models.FieldFilter{{Field: "cpu", Op: models.FilterEquals, Value: "i9"}}},
				}},
			},
			Priorities:      map[string][]string{"general": {"cpu"}},
			TriggerKeywords: config.TriggerKeywords{Vague: []string{"recommend"}},
		},
		PromptTemplate: "CTX:{context}\nQ:{query}",
	}
}

func newTestDialogue(t *testing.T, llm llmclient.Client) *Dialogue {
	store := testCatalogStore(t)
	domain := testDomain()
	ex := intent.New(domain, store)
	fc := funnel.New(funnel.NewMemStore(), domain.Funnel, time.Hour, nil)
	r := router.New(ex, fc, store, nil)
	planner := retrieval.New(store, nil, 5, nil)
	builder := promptio.NewBuilder(domain.PromptTemplate, 50)

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	return &Dialogue{
		Router:    r,
		Funnel:    fc,
		Retrieval: planner,
		Builder:   builder,
		LLM:       llm,
		Log:       logrus.NewEntry(logger),
	}
}

func TestHandleTurnListAll(t *testing.T) {
	d := newTestDialogue(t, llmclient.FuncClient(func(context.Context, string) (string, error) { return "", nil }))
	r := d.HandleTurn(context.Background(), Input{Query: "list all models"})
	assert.Equal(t, ReplyDirect, r.Kind)
	assert.Contains(t, r.Direct.Summary, "model")
}

func TestHandleTurnDirectAnswerWithLLMSuccess(t *testing.T) {
	fake := llmclient.FuncClient(func(context.Context, string) (string, error) {
		return `{"summary": "AG958 has an i7 CPU.", "table": [{"feature": "cpu", "AG958": "i7"}]}`, nil
	})
	d := newTestDialogue(t, fake)
	r := d.HandleTurn(context.Background(), Input{Query: "AG958 的 cpu 是什麼"})
	require.Equal(t, ReplyDirect, r.Kind)
	assert.Equal(t, "AG958 has an i7 CPU.", r.Direct.Summary)
}

func TestHandleTurnFallsBackWhenLLMFails(t *testing.T) {
	fake := llmclient.FuncClient(func(context.Context, string) (string, error) {
		return "", llmclient.ErrUnavailable
	})
	d := newTestDialogue(t, fake)
	r := d.HandleTurn(context.Background(), Input{Query: "AG958 的 cpu 是什麼"})
	require.Equal(t, ReplyDirect, r.Kind)
	assert.Contains(t, r.Direct.Summary, "without LLM analysis")
}

func TestHandleTurnFunnelTriggerThenAnswer(t *testing.T) {
	fake := llmclient.FuncClient(func(context.Context, string) (string, error) {
		return `{"summary": "done", "table": []}`, nil
	})
	d := newTestDialogue(t, fake)

	r := d.HandleTurn(context.Background(), Input{Query: "recommend me something"})
	require.Equal(t, ReplyFunnelStart, r.Kind)
	sid := r.SessionID
	require.NotEmpty(t, sid)

	r1 := d.HandleTurn(context.Background(), Input{IsFunnelRequestCurrent: true, FunnelSessionID: sid})
	require.Equal(t, ReplyFunnelQuestion, r1.Kind)
	assert.Equal(t, 0, r1.StepIndex)
	assert.Equal(t, 1, r1.TotalSteps)
	require.NotNil(t, r1.Question)
	assert.Equal(t, "cpu", r1.Question.FeatureID)

	r2 := d.HandleTurn(context.Background(), Input{IsFunnelAnswer: true, FunnelSessionID: sid, FunnelStepIndex: 0, FunnelOptionID: "cpu_heavy"})
	require.Equal(t, ReplyFunnelComplete, r2.Kind)
	assert.Equal(t, "heavy", r2.Preferences["cpu"])
	require.NotNil(t, r2.Direct)
}

func TestHandleTurnFunnelBatchStart(t *testing.T) {
	fake := llmclient.FuncClient(func(context.Context, string) (string, error) {
		return `{"summary": "done", "table": []}`, nil
	})
	d := newTestDialogue(t, fake)

	r := d.HandleTurn(context.Background(), Input{Query: "recommend me something", BatchRequested: true})
	require.Equal(t, ReplyFunnelBatch, r.Kind)
	require.Len(t, r.Questions, 1)
	assert.Equal(t, "cpu", r.Questions[0].FeatureID)

	r2 := d.HandleTurn(context.Background(), Input{IsFunnelBatch: true, FunnelSessionID: r.SessionID, FunnelBatchAnswers: map[string]string{"cpu": "cpu_heavy"}})
	require.Equal(t, ReplyFunnelComplete, r2.Kind)
	assert.Equal(t, "heavy", r2.Preferences["cpu"])
}

func TestHandleTurnUnknownSeries(t *testing.T) {
	d := newTestDialogue(t, llmclient.FuncClient(func(context.Context, string) (string, error) { return "", nil }))
	r := d.HandleTurn(context.Background(), Input{Query: "999 cpu 規格"})
	require.Equal(t, ReplyDirect, r.Kind)
	assert.Contains(t, r.Direct.Summary, "958")
}

// Package funnel implements component F: the guided-question session
// lifecycle that stands between a vague query and a retrieval-ready
// set of db_filters, per SPEC_FULL §4.F.
package funnel

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xrick/laptop-funnel-dialogue/internal/config"
	"github.com/xrick/laptop-funnel-dialogue/internal/models"
)

// EventKind tags the union returned by Answer/AnswerBatch.
type EventKind string

const (
	EventNextQuestion   EventKind = "next_question"
	EventComplete       EventKind = "complete"
	EventSessionExpired EventKind = "session_expired"
)

// Event is the tagged union described in §4.F. ValidationError is set
// (Kind stays NextQuestion) when option_id was unknown or out of range;
// the controller never raises for a bad answer. StepIndex/TotalSteps are
// populated on EventNextQuestion so a transport can render "step X of N"
// (§6's FunnelQuestion contract) without querying the controller again.
type Event struct {
	Kind            EventKind
	Question        *models.Question
	StepIndex       int
	TotalSteps      int
	ValidationError string

	Preferences   map[string]string
	DBFilters     []models.FieldFilter
	EnhancedQuery string
}

// SessionStore persists Session records. Implementations must not leak
// their storage shape into the controller (§9) — callers only ever see
// *models.Session.
type SessionStore interface {
	Get(ctx context.Context, sessionID string) (*models.Session, bool, error)
	Put(ctx context.Context, s *models.Session) error
	Delete(ctx context.Context, sessionID string) error
	// Sweep removes every session whose UpdatedAt is older than cutoff
	// and returns how many were removed.
	Sweep(ctx context.Context, cutoff time.Time) (int, error)
}

// Controller implements should_activate/start/answer/start_batch/answer_batch.
type Controller struct {
	store   SessionStore
	funnel  config.FunnelArtifact
	ttl     time.Duration
	defaultSeries []string

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// New constructs a Controller. defaultSeries is the "default series set"
// for funnel completions whose db_filters match nothing; the controller
// only stores it and reports it through DefaultSeries. The retrieval
// planner (H) is handed its own copy of the same set at startup.
func New(store SessionStore, funnel config.FunnelArtifact, ttl time.Duration, defaultSeries []string) *Controller {
	return &Controller{
		store:         store,
		funnel:        funnel,
		ttl:           ttl,
		defaultSeries: defaultSeries,
		locks:         make(map[string]*sync.Mutex),
	}
}

func (c *Controller) lockFor(sessionID string) *sync.Mutex {
	c.locksMu.Lock()
	defer c.locksMu.Unlock()
	l, ok := c.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		c.locks[sessionID] = l
	}
	return l
}

// ShouldActivate implements §4.F's activation decision tree. topic and
// shape come from the query's already-extracted Intent; lifestyleTopics
// is the configured set of topics that alone signal a funnel-worthy,
// spec-free query (e.g. "portability", "gaming", "business").
func (c *Controller) ShouldActivate(query string, intent models.Intent, lifestyleTopics []string) (bool, string) {
	if intent.Shape == models.ShapeSpecificModel || intent.Shape == models.ShapeSeries {
		return false, ""
	}

	lower := strings.ToLower(query)
	vague := containsAny(lower, c.funnel.TriggerKeywords.Vague)
	unknownGeneral := intent.Shape == models.ShapeUnknown && (intent.Topic == "general" || intent.Topic == "unclear")
	lifestyleOnly := intent.Shape == models.ShapeUnknown && containsString(lifestyleTopics, intent.Topic)

	if !vague && !unknownGeneral && !lifestyleOnly {
		return false, ""
	}

	return true, c.pickScenario(lower)
}

func (c *Controller) pickScenario(lower string) string {
	for _, scenario := range []string{"gaming", "business", "study", "creation"} {
		if containsAny(lower, c.funnel.ScenarioKeywords[scenario]) {
			return scenario
		}
	}
	return "general"
}

func (c *Controller) questionOrder(scenario string) []string {
	order := c.funnel.Priorities[scenario]
	if order == nil {
		order = c.funnel.Priorities["general"]
	}
	out := make([]string, 0, len(order))
	for _, fid := range order {
		if _, ok := c.funnel.Features[fid]; ok {
			out = append(out, fid)
		}
	}
	return out
}

// Start implements start(query) -> (session_id, Question).
func (c *Controller) Start(ctx context.Context, query string, scenario string) (string, *models.Question, error) {
	order := c.questionOrder(scenario)
	now := time.Now()
	sess := &models.Session{
		SessionID:     uuid.NewString(),
		OriginalQuery: query,
		Scenario:      scenario,
		QuestionOrder: order,
		StepIndex:     0,
		Answers:       map[string]string{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := c.store.Put(ctx, sess); err != nil {
		return "", nil, fmt.Errorf("funnel: start: %w", err)
	}

	if sess.Done() {
		return sess.SessionID, nil, nil
	}
	q := c.funnel.Features[order[0]]
	return sess.SessionID, &q, nil
}

// StartBatch implements start_batch(query) -> QuestionList: every
// question up front, for a caller that wants one round trip.
func (c *Controller) StartBatch(ctx context.Context, query string, scenario string) (string, []models.Question, error) {
	order := c.questionOrder(scenario)
	now := time.Now()
	sess := &models.Session{
		SessionID:     uuid.NewString(),
		OriginalQuery: query,
		Scenario:      scenario,
		QuestionOrder: order,
		StepIndex:     0,
		Answers:       map[string]string{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := c.store.Put(ctx, sess); err != nil {
		return "", nil, fmt.Errorf("funnel: start_batch: %w", err)
	}

	qs := make([]models.Question, 0, len(order))
	for _, fid := range order {
		qs = append(qs, c.funnel.Features[fid])
	}
	return sess.SessionID, qs, nil
}

// Answer implements answer(session_id, option_id) -> Event. stepIndex is
// the step the caller believes it is answering (the index of the
// question it was last shown): a mismatch against the session's current
// step_index means the caller is resubmitting a stale question, which
// is returned unchanged with no mutation; a match against the current
// step overwrites any prior answer for that step (idempotent retry).
func (c *Controller) Answer(ctx context.Context, sessionID string, stepIndex int, optionID string) (Event, error) {
	lock := c.lockFor(sessionID)
	lock.Lock()
	defer lock.Unlock()

	sess, ok, err := c.store.Get(ctx, sessionID)
	if err != nil {
		return Event{}, fmt.Errorf("funnel: answer: %w", err)
	}
	if !ok {
		return Event{Kind: EventSessionExpired}, nil
	}
	if c.expired(sess) {
		_ = c.store.Delete(ctx, sessionID)
		return Event{Kind: EventSessionExpired}, nil
	}

	if sess.Done() {
		return c.completeEvent(sess), nil
	}

	total := len(sess.QuestionOrder)

	if stepIndex != sess.StepIndex {
		fid := sess.QuestionOrder[sess.StepIndex]
		cur := c.funnel.Features[fid]
		return Event{Kind: EventNextQuestion, Question: &cur, StepIndex: sess.StepIndex, TotalSteps: total, ValidationError: "stale step, no mutation"}, nil
	}

	fid := sess.QuestionOrder[sess.StepIndex]
	q := c.funnel.Features[fid]
	opt, ok := findOption(q, optionID)
	if !ok {
		cur := q
		return Event{Kind: EventNextQuestion, Question: &cur, StepIndex: sess.StepIndex, TotalSteps: total, ValidationError: fmt.Sprintf("unknown option %q for %s", optionID, fid)}, nil
	}

	sess.Answers[fid] = opt.OptionID
	sess.StepIndex++
	sess.UpdatedAt = time.Now()
	if err := c.store.Put(ctx, sess); err != nil {
		return Event{}, fmt.Errorf("funnel: answer: persist: %w", err)
	}

	if sess.Done() {
		return c.completeEvent(sess), nil
	}
	nextFid := sess.QuestionOrder[sess.StepIndex]
	nq := c.funnel.Features[nextFid]
	return Event{Kind: EventNextQuestion, Question: &nq, StepIndex: sess.StepIndex, TotalSteps: total}, nil
}

// Current returns the question currently pending for sessionID without
// consuming an answer, for a transport that just received the
// FunnelStart notification and must immediately fetch the first
// question (§6).
func (c *Controller) Current(ctx context.Context, sessionID string) (Event, error) {
	lock := c.lockFor(sessionID)
	lock.Lock()
	defer lock.Unlock()

	sess, ok, err := c.store.Get(ctx, sessionID)
	if err != nil {
		return Event{}, fmt.Errorf("funnel: current: %w", err)
	}
	if !ok {
		return Event{Kind: EventSessionExpired}, nil
	}
	if c.expired(sess) {
		_ = c.store.Delete(ctx, sessionID)
		return Event{Kind: EventSessionExpired}, nil
	}
	if sess.Done() {
		return c.completeEvent(sess), nil
	}
	fid := sess.QuestionOrder[sess.StepIndex]
	q := c.funnel.Features[fid]
	return Event{Kind: EventNextQuestion, Question: &q, StepIndex: sess.StepIndex, TotalSteps: len(sess.QuestionOrder)}, nil
}

// AnswerBatch implements answer_batch({feature_id -> option_id}) -> Event
// (always Complete, or SessionExpired).
func (c *Controller) AnswerBatch(ctx context.Context, sessionID string, answers map[string]string) (Event, error) {
	lock := c.lockFor(sessionID)
	lock.Lock()
	defer lock.Unlock()

	sess, ok, err := c.store.Get(ctx, sessionID)
	if err != nil {
		return Event{}, fmt.Errorf("funnel: answer_batch: %w", err)
	}
	if !ok || c.expired(sess) {
		if ok {
			_ = c.store.Delete(ctx, sessionID)
		}
		return Event{Kind: EventSessionExpired}, nil
	}

	for _, fid := range sess.QuestionOrder {
		optID, given := answers[fid]
		if !given {
			continue
		}
		q := c.funnel.Features[fid]
		if opt, ok := findOption(q, optID); ok {
			sess.Answers[fid] = opt.OptionID
		}
	}
	sess.StepIndex = len(sess.QuestionOrder)
	sess.UpdatedAt = time.Now()
	if err := c.store.Put(ctx, sess); err != nil {
		return Event{}, fmt.Errorf("funnel: answer_batch: persist: %w", err)
	}
	return c.completeEvent(sess), nil
}

func (c *Controller) completeEvent(sess *models.Session) Event {
	prefs := map[string]string{}
	var filters []models.FieldFilter
	var phrases []string

	for _, fid := range sess.QuestionOrder {
		optID, ok := sess.Answers[fid]
		if !ok {
			continue
		}
		q := c.funnel.Features[fid]
		opt, ok := findOption(q, optID)
		if !ok {
			continue
		}
		prefs[fid] = opt.Label
		filters = append(filters, opt.Filters...)
		phrases = append(phrases, opt.Label)
	}

	enhanced := sess.OriginalQuery
	if len(phrases) > 0 {
		enhanced = strings.TrimSpace(sess.OriginalQuery + " (" + strings.Join(phrases, ", ") + ")")
	}

	return Event{
		Kind:          EventComplete,
		Preferences:   prefs,
		DBFilters:     filters,
		EnhancedQuery: enhanced,
	}
}

func (c *Controller) expired(sess *models.Session) bool {
	return time.Since(sess.UpdatedAt) > c.ttl
}

// Sweep removes every session past its TTL. Intended to run on a
// periodic ticker (default interval from config.Dialogue.SweepInterval).
func (c *Controller) Sweep(ctx context.Context) (int, error) {
	return c.store.Sweep(ctx, time.Now().Add(-c.ttl))
}

// DefaultSeries returns the configured fallback series set H applies
// when a funnel completion's db_filters match nothing.
func (c *Controller) DefaultSeries() []string {
	return c.defaultSeries
}

func findOption(q models.Question, optionID string) (models.Option, bool) {
	for _, o := range q.Options {
		if o.OptionID == optionID {
			return o, true
		}
	}
	return models.Option{}, false
}

func containsAny(lower string, words []string) bool {
	for _, w := range words {
		if w != "" && strings.Contains(lower, strings.ToLower(w)) {
			return true
		}
	}
	return false
}

func containsString(set []string, s string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

// Package dialogue wires components E through J into the single
// handle_turn(input) -> Reply entry point of SPEC_FULL §6. It is the
// unified dispatcher the redesign notes (§9) call for, replacing any
// ad-hoc multi-path handling with one tagged Reply union.
package dialogue

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/xrick/laptop-funnel-dialogue/internal/dialogue/errs"
	"github.com/xrick/laptop-funnel-dialogue/internal/funnel"
	"github.com/xrick/laptop-funnel-dialogue/internal/llmclient"
	"github.com/xrick/laptop-funnel-dialogue/internal/models"
	"github.com/xrick/laptop-funnel-dialogue/internal/promptio"
	"github.com/xrick/laptop-funnel-dialogue/internal/response"
	"github.com/xrick/laptop-funnel-dialogue/internal/retrieval"
	"github.com/xrick/laptop-funnel-dialogue/internal/router"
)

// ReplyKind tags the union returned by HandleTurn.
type ReplyKind string

const (
	ReplyDirect         ReplyKind = "direct"
	ReplyFunnelStart    ReplyKind = "funnel_start"
	ReplyFunnelQuestion ReplyKind = "funnel_question"
	ReplyFunnelBatch    ReplyKind = "funnel_batch"
	ReplyFunnelComplete ReplyKind = "funnel_complete"
	ReplyError          ReplyKind = "error"
)

const (
	defaultRetrievalTimeout = 2 * time.Second
	defaultTruncateWidth    = 50
)

// Reply is the tagged union of §6.
type Reply struct {
	Kind ReplyKind

	Direct *models.Response // ReplyDirect

	Message string // ReplyFunnelStart

	SessionID  string            // FunnelStart/FunnelQuestion/FunnelBatch/FunnelComplete
	StepIndex  int               // ReplyFunnelQuestion
	TotalSteps int               // ReplyFunnelQuestion
	Question   *models.Question  // ReplyFunnelQuestion
	Questions  []models.Question // ReplyFunnelBatch

	Preferences map[string]string // ReplyFunnelComplete

	ErrorKind    errs.Kind // ReplyError
	ErrorMessage string    // ReplyError
}

// Input is the tagged union handle_turn accepts. BatchRequested only
// matters on a Query turn that the router decides is a funnel trigger:
// it selects start_batch (one-shot FunnelBatch) over the default
// FunnelStart/FunnelQuestion handshake. IsFunnelRequestCurrent is the
// transport's "immediately request the first question" follow-up to a
// FunnelStart notification (§6).
type Input struct {
	Query                  string
	BatchRequested         bool
	FunnelSessionID        string
	FunnelStepIndex        int
	FunnelOptionID         string
	FunnelBatchAnswers     map[string]string
	IsFunnelAnswer         bool
	IsFunnelBatch          bool
	IsFunnelRequestCurrent bool
}

// Dialogue is the assembled core: one instance per process, built once
// at startup from the immutable config/catalog/vector/LLM dependencies.
// RetrievalTimeout and TruncateWidth default when zero, so a Dialogue
// built without explicit configuration (e.g. in tests) still behaves
// sensibly.
type Dialogue struct {
	Router    *router.Router
	Funnel    *funnel.Controller
	Retrieval *retrieval.Planner
	Builder   *promptio.Builder
	LLM       llmclient.Client
	Log       *logrus.Entry

	RetrievalTimeout time.Duration
	TruncateWidth    int
}

// HandleTurn implements the external interface of §6.
func (d *Dialogue) HandleTurn(ctx context.Context, in Input) Reply {
	if in.IsFunnelBatch {
		return d.handleFunnelBatchAnswer(ctx, in.FunnelSessionID, in.FunnelBatchAnswers)
	}
	if in.IsFunnelAnswer {
		return d.handleFunnelAnswer(ctx, in.FunnelSessionID, in.FunnelStepIndex, in.FunnelOptionID)
	}
	if in.IsFunnelRequestCurrent {
		return d.handleFunnelRequestCurrent(ctx, in.FunnelSessionID)
	}
	return d.handleQuery(ctx, in.Query, in.BatchRequested)
}

func (d *Dialogue) handleQuery(ctx context.Context, query string, batchRequested bool) Reply {
	decision := d.Router.Route(query)
	d.Log.WithFields(logrus.Fields{
		"decision": decision.Kind,
		"query":    query,
	}).Info("intent routing decision")

	switch decision.Kind {
	case router.DecisionListAll:
		return Reply{Kind: ReplyDirect, Direct: &models.Response{
			Summary: "Here are every available model and series.",
			Table:   listAllTable(decision.Names, decision.Series),
		}}

	case router.DecisionFunnelStart:
		if batchRequested {
			return d.startFunnelBatch(ctx, query, decision.Scenario)
		}
		return d.startFunnel(ctx, query, decision.Scenario)

	case router.DecisionUnknownSeries:
		return Reply{Kind: ReplyDirect, Direct: &models.Response{
			Summary: "No such series: " + joinOr(decision.RequestedSeries, "none") + ". Known series: " + joinOr(decision.KnownSeries, "none"),
			Table:   []models.Row{},
		}}

	default: // DecisionDirectAnswer
		return d.answerDirectly(ctx, decision.Intent, nil, nil)
	}
}

// startFunnel implements the stepwise handshake (§6): it opens the
// session and returns only a FunnelStart notification. The transport is
// expected to immediately follow up with IsFunnelRequestCurrent to fetch
// the first question (S3). A scenario with zero configured questions has
// nothing to hand the user, so it completes on the spot instead.
func (d *Dialogue) startFunnel(ctx context.Context, query, scenario string) Reply {
	sid, q, err := d.Funnel.Start(ctx, query, scenario)
	if err != nil {
		d.Log.WithError(err).Error("funnel lifecycle: start failed")
		return errorReply(errs.ConfigInvalid, "could not start guided session")
	}
	d.Log.WithFields(logrus.Fields{"session_id": sid, "scenario": scenario}).Info("funnel lifecycle: start")
	if q == nil {
		return d.handleFunnelRequestCurrent(ctx, sid)
	}
	return Reply{Kind: ReplyFunnelStart, SessionID: sid, Message: "A few quick questions will help narrow this down."}
}

// startFunnelBatch implements the one-shot handshake (§6): the full
// question list is returned directly, with no FunnelStart notification.
func (d *Dialogue) startFunnelBatch(ctx context.Context, query, scenario string) Reply {
	sid, qs, err := d.Funnel.StartBatch(ctx, query, scenario)
	if err != nil {
		d.Log.WithError(err).Error("funnel lifecycle: start_batch failed")
		return errorReply(errs.ConfigInvalid, "could not start guided session")
	}
	d.Log.WithFields(logrus.Fields{"session_id": sid, "scenario": scenario}).Info("funnel lifecycle: start_batch")
	if len(qs) == 0 {
		return d.handleFunnelRequestCurrent(ctx, sid)
	}
	return Reply{Kind: ReplyFunnelBatch, SessionID: sid, Questions: qs}
}

func (d *Dialogue) handleFunnelRequestCurrent(ctx context.Context, sessionID string) Reply {
	ev, err := d.Funnel.Current(ctx, sessionID)
	if err != nil {
		d.Log.WithError(err).Error("funnel lifecycle: current failed")
		return errorReply(errs.SessionNotFound, "session could not be read")
	}
	return d.funnelEventToReply(ctx, sessionID, ev)
}

func (d *Dialogue) handleFunnelAnswer(ctx context.Context, sessionID string, stepIndex int, optionID string) Reply {
	ev, err := d.Funnel.Answer(ctx, sessionID, stepIndex, optionID)
	if err != nil {
		d.Log.WithError(err).Error("funnel lifecycle: answer failed")
		return errorReply(errs.SessionNotFound, "session could not be read")
	}
	return d.funnelEventToReply(ctx, sessionID, ev)
}

func (d *Dialogue) handleFunnelBatchAnswer(ctx context.Context, sessionID string, answers map[string]string) Reply {
	ev, err := d.Funnel.AnswerBatch(ctx, sessionID, answers)
	if err != nil {
		d.Log.WithError(err).Error("funnel lifecycle: answer_batch failed")
		return errorReply(errs.SessionNotFound, "session could not be read")
	}
	return d.funnelEventToReply(ctx, sessionID, ev)
}

func (d *Dialogue) funnelEventToReply(ctx context.Context, sessionID string, ev funnel.Event) Reply {
	switch ev.Kind {
	case funnel.EventSessionExpired:
		d.Log.WithField("session_id", sessionID).Info("funnel lifecycle: expired")
		return errorReply(errs.SessionExpired, "this guided session has expired; please start over")

	case funnel.EventNextQuestion:
		if ev.ValidationError != "" {
			d.Log.WithFields(logrus.Fields{"session_id": sessionID, "reason": ev.ValidationError}).Info("funnel lifecycle: invalid answer")
			return Reply{Kind: ReplyFunnelQuestion, SessionID: sessionID, StepIndex: ev.StepIndex, TotalSteps: ev.TotalSteps, Question: ev.Question, ErrorKind: errs.InvalidAnswer, ErrorMessage: ev.ValidationError}
		}
		d.Log.WithField("session_id", sessionID).Info("funnel lifecycle: answer")
		return Reply{Kind: ReplyFunnelQuestion, SessionID: sessionID, StepIndex: ev.StepIndex, TotalSteps: ev.TotalSteps, Question: ev.Question}

	default: // funnel.EventComplete
		d.Log.WithField("session_id", sessionID).Info("funnel lifecycle: complete")
		in := models.Intent{Shape: models.ShapeUnknown, Topic: "general", EnhancedQuery: ev.EnhancedQuery}
		direct := d.answerDirectly(ctx, in, ev.DBFilters, ev.Preferences)
		return Reply{
			Kind:        ReplyFunnelComplete,
			SessionID:   sessionID,
			Preferences: ev.Preferences,
			Direct:      direct.Direct,
		}
	}
}

// answerDirectly runs H -> I -> LLM -> I.Parse -> J for a resolved
// intent, honoring the caller's deadline and absorbing every downstream
// failure into a Direct reply (§7's overarching principle).
func (d *Dialogue) answerDirectly(ctx context.Context, in models.Intent, dbFilters []models.FieldFilter, preferences map[string]string) Reply {
	plan := d.retrieve(ctx, in, dbFilters)
	if plan.err != nil {
		d.Log.WithError(plan.err).Warn("response shaping decision: retrieval timed out")
		return Reply{Kind: ReplyDirect, Direct: ptr(response.Unavailable())}
	}
	if plan.Unavailable {
		d.Log.WithField("field", plan.UnavailField).Info("response shaping decision: data unavailable")
		return Reply{Kind: ReplyDirect, Direct: ptr(response.DataUnavailable(plan.UnavailField, plan.TargetNames))}
	}

	prompt := d.Builder.Build(in, plan.Rows, plan.TargetNames, preferences)

	reply, err := d.callLLM(ctx, prompt)
	if err != nil {
		d.Log.WithError(err).Warn("LLM call outcome: failed, using fallback")
		return Reply{Kind: ReplyDirect, Direct: ptr(response.Fallback(in.Topic, plan.Rows, plan.TargetNames))}
	}

	parser := promptio.NewParser(d.truncateWidth(), plan.TargetNames)
	parsed, err := parser.Parse(reply)
	if err != nil {
		d.Log.WithError(err).Warn("response shaping decision: parse failed, using fallback")
		return Reply{Kind: ReplyDirect, Direct: ptr(response.Fallback(in.Topic, plan.Rows, plan.TargetNames))}
	}

	d.Log.Info("response shaping decision: LLM-parsed")
	return Reply{Kind: ReplyDirect, Direct: ptr(response.Shape(parsed))}
}

type planResult struct {
	retrieval.Plan
	err error
}

// retrieve enforces retrieval's short internal timeout (§5): on expiry
// it returns an empty result set rather than propagating the error.
func (d *Dialogue) retrieve(ctx context.Context, in models.Intent, dbFilters []models.FieldFilter) planResult {
	rctx, cancel := context.WithTimeout(ctx, d.retrievalTimeout())
	defer cancel()

	done := make(chan retrieval.Plan, 1)
	go func() { done <- d.Retrieval.Plan(rctx, in, dbFilters) }()

	select {
	case p := <-done:
		return planResult{Plan: p}
	case <-rctx.Done():
		return planResult{err: rctx.Err()}
	}
}

func (d *Dialogue) retrievalTimeout() time.Duration {
	if d.RetrievalTimeout <= 0 {
		return defaultRetrievalTimeout
	}
	return d.RetrievalTimeout
}

func (d *Dialogue) truncateWidth() int {
	if d.TruncateWidth <= 0 {
		return defaultTruncateWidth
	}
	return d.TruncateWidth
}

// callLLM honors the turn's remaining deadline: if the budget is
// already exhausted, it fails fast instead of issuing the call.
func (d *Dialogue) callLLM(ctx context.Context, prompt string) (string, error) {
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) <= 0 {
		return "", errors.New("dialogue: turn deadline already exceeded")
	}
	start := time.Now()
	out, err := d.LLM.Complete(ctx, prompt)
	latency := time.Since(start)
	if err != nil {
		d.Log.WithFields(logrus.Fields{"latency_ms": latency.Milliseconds(), "error": err.Error()}).Warn("LLM call outcome: error")
		return "", err
	}
	if out == "" {
		d.Log.WithField("latency_ms", latency.Milliseconds()).Warn("LLM call outcome: empty")
		return "", llmclient.ErrEmpty
	}
	d.Log.WithField("latency_ms", latency.Milliseconds()).Info("LLM call outcome: success")
	return out, nil
}

func listAllTable(names, series []string) []models.Row {
	return []models.Row{
		{"feature": "models", "value": joinOr(names, "none")},
		{"feature": "series", "value": joinOr(series, "none")},
	}
}

func joinOr(items []string, empty string) string {
	if len(items) == 0 {
		return empty
	}
	out := items[0]
	for _, s := range items[1:] {
		out += ", " + s
	}
	return out
}

func errorReply(kind errs.Kind, message string) Reply {
	return Reply{Kind: ReplyError, ErrorKind: kind, ErrorMessage: message}
}

func ptr(r models.Response) *models.Response { return &r }

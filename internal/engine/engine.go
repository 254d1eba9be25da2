package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/session-reasoner/internal/audit"
	"github.com/danielpatrickdp/session-reasoner/internal/escalation"
	"github.com/danielpatrickdp/session-reasoner/internal/evidence"
	"github.com/danielpatrickdp/session-reasoner/internal/explain"
	"github.com/danielpatrickdp/session-reasoner/internal/graph"
	"github.com/danielpatrickdp/session-reasoner/internal/logging"
	"github.com/danielpatrickdp/session-reasoner/internal/metrics"
	"github.com/danielpatrickdp/session-reasoner/internal/ontology"
	"github.com/danielpatrickdp/session-reasoner/internal/ranking"
	"github.com/danielpatrickdp/session-reasoner/internal/rules"
	"github.com/danielpatrickdp/session-reasoner/internal/store"
)

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,127}$`)

// #region engine-struct

// Engine runs reasoning turns against durable per-session graphs. Turns of
// one session are serialized; different sessions may run concurrently.
type Engine struct {
	dir     string
	rules   RuleSource
	store   *store.Store
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	export  func(s *graph.Session, path string) error

	locks   *lockRegistry
	ranker  *ranking.Ranker
	decider *escalation.Decider
}

// Option configures an Engine.
type Option func(*Engine)

// WithRules sets the rule source. Defaults to the embedded table.
func WithRules(src RuleSource) Option { return func(e *Engine) { e.rules = src } }

// WithStore enables the SQLite audit log and session index.
func WithStore(s *store.Store) Option { return func(e *Engine) { e.store = s } }

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithMetrics sets the metrics collectors.
func WithMetrics(m *metrics.Metrics) Option { return func(e *Engine) { e.metrics = m } }

// WithClock overrides the creation time of new sessions.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// #endregion engine-struct

// #region constructor

// New creates an engine that keeps session graphs under dir.
func New(dir string, opts ...Option) (*Engine, error) {
	e := &Engine{
		dir:     dir,
		logger:  zap.NewNop(),
		now:     func() time.Time { return time.Now().UTC() },
		export:  (*graph.Session).Export,
		locks:   newLockRegistry(),
		ranker:  ranking.NewRanker(),
		decider: escalation.NewDecider(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rules == nil {
		t, err := rules.Default()
		if err != nil {
			return nil, err
		}
		e.rules = t
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("session dir: %w", err)
	}
	return e, nil
}

// #endregion constructor

// #region reason

// Reason runs one turn: load or create the session, take in the signals,
// run the rule fixpoint, then explain, rank, escalate and audit. The graph
// is durable only once exported; any failure before that leaves the
// durable session untouched.
func (e *Engine) Reason(ctx context.Context, sessionID, subjectID string, signals []evidence.Signal) (Result, error) {
	start := time.Now()
	res, err := e.reason(ctx, sessionID, subjectID, signals)
	e.metrics.ObserveTurn(outcome(err), time.Since(start))
	if err != nil {
		e.logger.Warn("turn failed",
			zap.String("session_id", sessionID),
			zap.String("subject_id", subjectID),
			zap.Error(err))
	}
	return res, err
}

func (e *Engine) reason(ctx context.Context, sessionID, subjectID string, signals []evidence.Signal) (Result, error) {
	if sessionID == "" {
		sessionID = "session_" + uuid.New().String()
	}
	if !sessionIDPattern.MatchString(sessionID) {
		return Result{}, &InvalidSessionError{Field: "session id", Value: sessionID}
	}
	if strings.TrimSpace(subjectID) == "" || strings.ContainsAny(subjectID, "\n\r") {
		return Result{}, &InvalidSessionError{Field: "subject id", Value: subjectID}
	}

	path := e.graphPath(sessionID)
	var res Result
	err := e.locks.with(ctx, path, func() error {
		var err error
		res, err = e.turn(ctx, path, sessionID, subjectID, signals)
		return err
	})
	return res, err
}

// turn runs under the session lock.
func (e *Engine) turn(ctx context.Context, path, sessionID, subjectID string, signals []evidence.Signal) (Result, error) {
	s, err := e.open(path, sessionID, subjectID)
	if err != nil {
		return Result{}, err
	}
	table := e.rules.Current()

	turn, err := s.BeginTurn()
	if err != nil {
		return Result{}, err
	}
	intake, err := evidence.Intake(s, signals)
	if err != nil {
		return Result{}, err
	}
	e.metrics.ObserveRejected(len(intake.Rejected))

	persistent, err := e.priorNeedsMoreContext(ctx, subjectID, sessionID)
	if err != nil {
		return Result{}, fmt.Errorf("history scan: %w", err)
	}
	if persistent {
		if _, err := s.AddRiskFactor(ontology.RepeatedStressExposure); err != nil {
			return Result{}, err
		}
	}

	fx, err := table.Apply(s)
	if err != nil {
		return Result{}, err
	}

	findings := escalation.FindingsFrom(s)
	exps := e.explain(s, table, findings)
	ranked := e.ranker.Rank(exps)
	decision := e.decider.Decide(findings, ranked.AggregatedSafety)

	rec, err := audit.Build(audit.Input{
		Session:      s,
		Turn:         turn,
		Signals:      signals,
		Intake:       intake,
		Fixpoint:     fx,
		Table:        table,
		Explanations: exps,
		Ranking:      ranked,
		Escalation:   decision,
	})
	if err != nil {
		return Result{}, err
	}
	if err := s.RecordAuditRef(turn, rec.RecordHash); err != nil {
		return Result{}, err
	}
	if err := e.export(s, path); err != nil {
		return Result{}, err
	}

	e.recordTurn(ctx, s, rec)
	e.metrics.ObserveDecision(decision.Level, fx.Added)

	sessionLog := logging.Session(e.logger, s.ID(), s.SubjectID())
	if ce := sessionLog.Check(zap.DebugLevel, "explanations"); ce != nil {
		lines := make([]string, len(exps))
		for i, x := range exps {
			lines[i] = explain.Summary(x)
		}
		ce.Write(zap.String("turn", turn), zap.Strings("states", lines))
	}
	sessionLog.Info("turn complete",
		zap.String("turn", turn),
		zap.Any("derived_states", rec.Inference.DerivedStates),
		zap.String("escalation", string(decision.Level)),
		zap.String("audit_ref", rec.RecordHash),
		zap.Int("passes", fx.Passes))

	return newResult(s, turn, intake, exps, ranked, decision, rec), nil
}

// open loads the durable session or starts a new one.
func (e *Engine) open(path, sessionID, subjectID string) (*graph.Session, error) {
	s, err := graph.LoadSession(path)
	switch {
	case err == nil:
		if s.SubjectID() != subjectID {
			return nil, &SubjectMismatchError{SessionID: sessionID, Stored: s.SubjectID(), Requested: subjectID}
		}
		if s.ID() != sessionID {
			return nil, &graph.CorruptSessionError{Path: path, Reason: fmt.Sprintf("session id %q does not match file", s.ID())}
		}
		return s, nil
	case errors.Is(err, os.ErrNotExist):
		return graph.CreateSessionAt(subjectID, sessionID, e.now())
	default:
		return nil, err
	}
}

func (e *Engine) explain(s *graph.Session, table *rules.Table, findings escalation.Findings) []explain.Explanation {
	x := explain.NewExplainer(table.Descriptions())
	cats := evidence.Categorize(s)
	persistence := s.HasRiskFactor(ontology.RepeatedStressExposure)

	var out []explain.Explanation
	for _, st := range s.States() {
		out = append(out, x.Explain(explain.Input{
			State:       st,
			Categories:  cats,
			Rules:       s.Derivations(st),
			Persistence: persistence,
			Findings:    findings.For(st),
		}))
	}
	return out
}

// recordTurn writes the audit log and session index. The graph is already
// durable, so a failure here is logged and counted, not returned.
func (e *Engine) recordTurn(ctx context.Context, s *graph.Session, rec audit.Record) {
	if e.store == nil {
		return
	}
	entry := store.SessionEntry{
		SessionID:        s.ID(),
		SubjectID:        s.SubjectID(),
		CreatedAt:        s.CreatedAt(),
		Turns:            len(s.Turns()),
		NeedsMoreContext: s.HasState(ontology.NeedsMoreContext),
		LastAuditRef:     rec.RecordHash,
	}
	if err := e.store.RecordTurn(ctx, rec, entry); err != nil {
		e.metrics.ObserveAuditLogError()
		logging.Session(e.logger, s.ID(), s.SubjectID()).Error("audit log write failed",
			zap.String("audit_ref", rec.RecordHash),
			zap.Error(err))
	}
}

// #endregion reason

// #region helpers

func newResult(s *graph.Session, turn string, intake evidence.IntakeResult, exps []explain.Explanation, rk ranking.Result, dec escalation.Decision, rec audit.Record) Result {
	res := Result{
		SessionID:             s.ID(),
		SubjectID:             s.SubjectID(),
		Turn:                  turn,
		DerivedStates:         s.States(),
		RankedStates:          rk.Ranked,
		AggregatedSafety:      rk.AggregatedSafety,
		EscalationLevel:       dec.Level,
		EscalationReasons:     dec.Reasons,
		SupportRecommendation: dec.Recommendation,
		Disclaimer:            dec.Disclaimer,
		AuditRef:              rec.RecordHash,
		RejectedSignals:       intake.Rejected,
		Explanations:          exps,
		Record:                rec,
	}
	if rk.PrimaryConcern != "" {
		pc := rk.PrimaryConcern
		res.PrimaryConcern = &pc
	}
	return res
}

func outcome(err error) string {
	var (
		ise *InvalidSessionError
		cse *graph.CorruptSessionError
		efe *graph.ExportFailureError
	)
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.As(err, &ise):
		return metrics.OutcomeInvalidSession
	case errors.As(err, &cse):
		return metrics.OutcomeCorrupt
	case errors.As(err, &efe):
		return metrics.OutcomeExportFailure
	}
	return metrics.OutcomeError
}

// #endregion helpers

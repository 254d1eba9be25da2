package engine

import (
	"context"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/session-reasoner/internal/graph"
	"github.com/danielpatrickdp/session-reasoner/internal/ontology"
)

const graphSuffix = ".graph.jsonl"

// #region prior-sessions
// priorNeedsMoreContext reports whether any earlier exported session of
// subject carries NeedsMoreContext. The graph files decide: an index hit is
// confirmed against its graph, and anything else falls through to the
// session dir scan.
func (e *Engine) priorNeedsMoreContext(ctx context.Context, subject, current string) (bool, error) {
	if e.store != nil {
		prior, err := e.store.PriorSessions(ctx, subject, current)
		if err != nil {
			e.logger.Warn("session index unavailable, scanning session dir",
				zap.String("subject_id", subject), zap.Error(err))
		}
		for _, p := range prior {
			if p.NeedsMoreContext && e.graphNeedsMoreContext(p.SessionID, subject) {
				return true, nil
			}
		}
	}
	return e.scanDir(subject, current)
}

func (e *Engine) graphNeedsMoreContext(sessionID, subject string) bool {
	s, err := graph.LoadSession(e.graphPath(sessionID))
	if err != nil {
		e.logger.Warn("indexed session graph unreadable",
			zap.String("session_id", sessionID), zap.Error(err))
		return false
	}
	return s.SubjectID() == subject && s.HasState(ontology.NeedsMoreContext)
}

func (e *Engine) scanDir(subject, current string) (bool, error) {
	paths, err := filepath.Glob(filepath.Join(e.dir, "*"+graphSuffix))
	if err != nil {
		return false, err
	}
	for _, p := range paths {
		if strings.TrimSuffix(filepath.Base(p), graphSuffix) == current {
			continue
		}
		s, err := graph.LoadSession(p)
		if err != nil {
			e.logger.Warn("skipping unreadable session during history scan",
				zap.String("path", p), zap.Error(err))
			continue
		}
		if s.SubjectID() == subject && s.HasState(ontology.NeedsMoreContext) {
			return true, nil
		}
	}
	return false, nil
}

// #endregion prior-sessions

func (e *Engine) graphPath(sessionID string) string {
	return filepath.Join(e.dir, sessionID+graphSuffix)
}

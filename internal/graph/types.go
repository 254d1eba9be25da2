package graph

import (
	"fmt"

	"github.com/danielpatrickdp/session-reasoner/internal/ontology"
)

// #region predicates
const (
	PredType        = "rdf:type"
	PredSessionID   = "sessionId"
	PredHasSubject  = "hasSubject"
	PredTimestamp   = "timestamp"
	PredHasEvidence = "hasEvidence"
	PredConfidence  = "hasConfidence"
	PredPersistence = "hasPersistence"
	PredInTurn      = "inTurn"
	PredHasTurn     = "hasTurn"
	PredRiskFactor  = "hasRiskFactor"
	PredState       = "hasState"
	PredDerivedBy   = "derivedBy"
	PredAuditRef    = "auditRef"

	classSession = "Session"
)

// #endregion predicates

// #region fact
// Fact is one immutable (subject, predicate, object) assertion.
type Fact struct {
	Subject   string `json:"s"`
	Predicate string `json:"p"`
	Object    string `json:"o"`
}

// #endregion fact

// #region evidence-item
// EvidenceItem is the read view of one evidence node.
type EvidenceItem struct {
	ID          string
	Type        ontology.Label
	Confidence  ontology.ConfidenceLabel // empty if never set
	Persistence ontology.Persistence     // empty if never set
	Turn        string                   // empty for evidence added outside a turn
}

// #endregion evidence-item

// #region errors

// NoActiveSessionError is returned by every mutation on a session that was
// never created or loaded.
type NoActiveSessionError struct {
	Op string
}

func (e *NoActiveSessionError) Error() string {
	return fmt.Sprintf("%s: no active session", e.Op)
}

// CorruptSessionError is returned when a durable session file cannot be
// reconstructed.
type CorruptSessionError struct {
	Path   string
	Reason string
}

func (e *CorruptSessionError) Error() string {
	return fmt.Sprintf("corrupt session %s: %s", e.Path, e.Reason)
}

// ExportFailureError wraps a failed durable write. The caller must retry the
// whole turn.
type ExportFailureError struct {
	Path string
	Err  error
}

func (e *ExportFailureError) Error() string {
	return fmt.Sprintf("export session %s: %v", e.Path, e.Err)
}

func (e *ExportFailureError) Unwrap() error { return e.Err }

// #endregion errors

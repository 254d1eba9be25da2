package graph

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// errNotAppendOnly is wrapped in ExportFailureError when the durable file
// holds facts the in-memory session does not start with.
var errNotAppendOnly = errors.New("durable graph is not a prefix of the session")

// #region export

// Encode serializes every fact as one JSON object per line, in insertion
// order. Identical fact sequences always encode to identical bytes.
func (s *Session) Encode() ([]byte, error) {
	if err := s.active("encode session"); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	for _, f := range s.facts {
		line, err := json.Marshal(f)
		if err != nil {
			return nil, fmt.Errorf("encode fact: %w", err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// Export writes the session to path atomically (temp file then rename).
// An existing file must be a prefix of the new content; facts already
// durable are never rewritten.
func (s *Session) Export(path string) error {
	if err := s.active("export session"); err != nil {
		return err
	}
	data, err := s.Encode()
	if err != nil {
		return &ExportFailureError{Path: path, Err: err}
	}

	prev, err := os.ReadFile(path)
	switch {
	case err == nil:
		if !bytes.HasPrefix(data, prev) {
			return &ExportFailureError{Path: path, Err: errNotAppendOnly}
		}
		if len(prev) == len(data) {
			return nil
		}
	case !errors.Is(err, os.ErrNotExist):
		return &ExportFailureError{Path: path, Err: err}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &ExportFailureError{Path: path, Err: err}
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return &ExportFailureError{Path: path, Err: err}
	}
	tmpName := tmp.Name()
	cleanup := func(cause error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return &ExportFailureError{Path: path, Err: cause}
	}
	if _, err := tmp.Write(data); err != nil {
		return cleanup(err)
	}
	if err := tmp.Sync(); err != nil {
		return cleanup(err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return &ExportFailureError{Path: path, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return &ExportFailureError{Path: path, Err: err}
	}
	return nil
}

// #endregion export

// #region load

// LoadSession reconstructs a session from a file written by Export.
func LoadSession(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return Decode(path, data)
}

// Decode rebuilds a session from encoded facts. name is used in errors.
func Decode(name string, data []byte) (*Session, error) {
	s := newSession()
	lines := bytes.Split(data, []byte{'\n'})
	for i, line := range lines {
		if len(line) == 0 {
			if i == len(lines)-1 {
				break
			}
			return nil, &CorruptSessionError{Path: name, Reason: fmt.Sprintf("empty line %d", i+1)}
		}
		var f Fact
		if err := json.Unmarshal(line, &f); err != nil {
			return nil, &CorruptSessionError{Path: name, Reason: fmt.Sprintf("line %d: %v", i+1, err)}
		}
		if f.Subject == "" || f.Predicate == "" {
			return nil, &CorruptSessionError{Path: name, Reason: fmt.Sprintf("line %d: incomplete fact", i+1)}
		}
		if !s.add(f) {
			return nil, &CorruptSessionError{Path: name, Reason: fmt.Sprintf("line %d: duplicate fact", i+1)}
		}
	}

	nodes := s.Subjects(PredType, classSession)
	if len(nodes) != 1 {
		return nil, &CorruptSessionError{Path: name, Reason: fmt.Sprintf("expected one session marker, found %d", len(nodes))}
	}
	node := nodes[0]
	id, err := single(s, node, PredSessionID)
	if err != nil {
		return nil, &CorruptSessionError{Path: name, Reason: err.Error()}
	}
	subject, err := single(s, node, PredHasSubject)
	if err != nil {
		return nil, &CorruptSessionError{Path: name, Reason: err.Error()}
	}
	ts, err := single(s, node, PredTimestamp)
	if err != nil {
		return nil, &CorruptSessionError{Path: name, Reason: err.Error()}
	}
	if node != "session:"+id {
		return nil, &CorruptSessionError{Path: name, Reason: fmt.Sprintf("session node %q does not match id %q", node, id)}
	}
	createdAt, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return nil, &CorruptSessionError{Path: name, Reason: fmt.Sprintf("timestamp: %v", err)}
	}
	s.id = id
	s.subject = subject
	s.createdAt = createdAt

	for i, ev := range s.Objects(node, PredHasEvidence) {
		if ev != "ev_"+strconv.Itoa(i) {
			return nil, &CorruptSessionError{Path: name, Reason: fmt.Sprintf("evidence %q out of sequence", ev)}
		}
	}
	s.nextEvidence = len(s.Objects(node, PredHasEvidence))
	s.nextTurn = len(s.Objects(node, PredHasTurn))
	return s, nil
}

func single(s *Session, subject, predicate string) (string, error) {
	vs := s.Objects(subject, predicate)
	if len(vs) != 1 {
		return "", fmt.Errorf("expected one %s marker, found %d", predicate, len(vs))
	}
	return vs[0], nil
}

// #endregion load

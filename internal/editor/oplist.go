package editor

import "github.com/reelcut/video-editor/backend/internal/models"

// OperationList is the ordered, export-facing list of edit records.
// Singleton types hold at most one record; multi-instance types are rebuilt
// wholesale from their segment collection by the session.
type OperationList struct {
	records []models.Operation
}

// Upsert replaces the first record of a singleton type or appends. Records of
// multi-instance types are always appended.
func (l *OperationList) Upsert(op models.Operation) {
	if op.Type().Singleton() {
		for i, existing := range l.records {
			if existing.Type() == op.Type() {
				l.records[i] = op
				return
			}
		}
	}
	l.records = append(l.records, op)
}

// RemoveByType deletes every record of the given type
func (l *OperationList) RemoveByType(t models.OperationType) {
	kept := l.records[:0]
	for _, op := range l.records {
		if op.Type() != t {
			kept = append(kept, op)
		}
	}
	for i := len(kept); i < len(l.records); i++ {
		l.records[i] = nil
	}
	l.records = kept
}

// Replace drops all records of type t and appends ops in order
func (l *OperationList) Replace(t models.OperationType, ops []models.Operation) {
	l.RemoveByType(t)
	for _, op := range ops {
		l.Upsert(op)
	}
}

// Find returns the first record of type t
func (l *OperationList) Find(t models.OperationType) (models.Operation, bool) {
	for _, op := range l.records {
		if op.Type() == t {
			return op, true
		}
	}
	return nil, false
}

// Records returns a copy of the list
func (l *OperationList) Records() []models.Operation {
	out := make([]models.Operation, len(l.records))
	copy(out, l.records)
	return out
}

func (l *OperationList) Len() int {
	return len(l.records)
}

func (l *OperationList) Clear() {
	l.records = nil
}

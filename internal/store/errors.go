package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/codefionn/netshell/internal/model"
)

var (
	// ErrNotFound is returned when a key has no entity
	ErrNotFound = errors.New("entity not found")
	// ErrConflict is matched by every *ConflictError
	ErrConflict = errors.New("storage conflict")
)

// FieldConflict is one field whose stored value differs from the value the
// unit of work tried to write.
type FieldConflict struct {
	Field  string
	Ours   any
	Theirs any
}

// ConflictError reports a concurrent mutation detected at sync time
type ConflictError struct {
	Op     string
	Key    model.Key
	Reason string
	Fields []FieldConflict
}

func (e *ConflictError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "conflict on %s %s: %s", e.Op, e.Key, e.Reason)
	if len(e.Fields) > 0 {
		b.WriteString(" (")
		for i, f := range e.Fields {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s: ours=%v theirs=%v", f.Field, f.Ours, f.Theirs)
		}
		b.WriteString(")")
	}
	return b.String()
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// diffFields compares two JSON objects field by field
func diffFields(ours, theirs []byte) []FieldConflict {
	var a, b map[string]any
	if err := json.Unmarshal(ours, &a); err != nil {
		return nil
	}
	if err := json.Unmarshal(theirs, &b); err != nil {
		return nil
	}

	names := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		names[k] = struct{}{}
	}
	for k := range b {
		names[k] = struct{}{}
	}
	sorted := make([]string, 0, len(names))
	for k := range names {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	var out []FieldConflict
	for _, k := range sorted {
		if !reflect.DeepEqual(a[k], b[k]) {
			out = append(out, FieldConflict{Field: k, Ours: a[k], Theirs: b[k]})
		}
	}
	return out
}

// checkOp validates o against the current row, as a backend sees it inside
// its commit. exists is false when no row is stored.
func checkOp(o op, current row, exists bool) error {
	switch o.kind {
	case opAdd:
		if exists {
			return &ConflictError{Op: "add", Key: o.row.key, Reason: "already exists", Fields: diffFields(o.row.data, current.data)}
		}
	case opUpdate:
		if !exists {
			return &ConflictError{Op: "update", Key: o.row.key, Reason: "deleted concurrently"}
		}
		if o.base != nil && o.base.version != current.version {
			return &ConflictError{
				Op:     "update",
				Key:    o.row.key,
				Reason: fmt.Sprintf("version %d is now %d", o.base.version, current.version),
				Fields: diffFields(o.row.data, current.data),
			}
		}
	case opDelete:
		if exists && o.base != nil && o.base.version != current.version {
			return &ConflictError{
				Op:     "delete",
				Key:    o.row.key,
				Reason: fmt.Sprintf("version %d is now %d", o.base.version, current.version),
				Fields: diffFields(o.base.data, current.data),
			}
		}
	}
	return nil
}

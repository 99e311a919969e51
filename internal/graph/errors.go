package graph

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDanglingReference is returned when an edge names a node the graph does not hold.
	ErrDanglingReference = errors.New("dangling node reference")
	// ErrDuplicateID is returned when an id is already taken in the graph.
	ErrDuplicateID = errors.New("duplicate id")
	// ErrUnknownKind is returned when decoding a record with an unrecognised type tag.
	ErrUnknownKind = errors.New("unknown kind")
	// ErrNilEntity is returned when a nil node or edge is inserted.
	ErrNilEntity = errors.New("nil entity")
)

// DanglingReferenceError lists the node ids an edge referenced but the graph lacked.
type DanglingReferenceError struct {
	EdgeID  string
	Missing []string
}

func (e *DanglingReferenceError) Error() string {
	return fmt.Sprintf("edge %s references missing nodes [%s]", e.EdgeID, strings.Join(e.Missing, ", "))
}

func (e *DanglingReferenceError) Is(target error) bool {
	return target == ErrDanglingReference
}

// DuplicateIDError names the id that collided.
type DuplicateIDError struct {
	ID string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("id %s already exists in graph", e.ID)
}

func (e *DuplicateIDError) Is(target error) bool {
	return target == ErrDuplicateID
}

// ValidationError describes one integrity problem found by Validate.
type ValidationError struct {
	EdgeID string `json:"edge_id"`
	RefID  string `json:"ref_id"` // The problematic node reference
	Issue  string `json:"issue"`  // "dangling"
}

// String returns a human-readable description of the validation error.
func (e ValidationError) String() string {
	return fmt.Sprintf("%s: edge %s references %s", e.Issue, e.EdgeID, e.RefID)
}

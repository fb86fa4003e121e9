package graph

import "github.com/google/uuid"

// ConnectionID uniquely identifies a connection within a graph.
type ConnectionID string

// NewConnectionID generates a fresh random connection identity.
func NewConnectionID() ConnectionID { return ConnectionID(uuid.NewString()) }

// Connection is a directed edge from one node's output port to another
// node's input port. Connections reference their endpoints by ID, never
// by pointer, so structural edits stay simple value operations.
type Connection struct {
	// ID is the opaque unique identity of the connection.
	ID ConnectionID

	// FromNode and FromPort identify the upstream output.
	FromNode NodeID
	FromPort string

	// ToNode and ToPort identify the downstream input.
	ToNode NodeID
	ToPort string
}

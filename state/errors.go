package state

import "errors"

// ErrNotFound is returned when a neighbour or message has no current record.
// Callers are expected to check IsNeighbour / Exist first.
var ErrNotFound = errors.New("not found")

// ErrNodeIdRange is returned for a node id too large to be packed into a MessageId.
var ErrNodeIdRange = errors.New("node id out of range")

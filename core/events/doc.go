// Package events defines the planning events emitted on the event bus.
//
// Available event kinds:
//   - AssignmentCreated: a PLANNED assignment was committed
//   - AssignmentUpdated: an assignment changed status (started, completed, cancelled)
//   - ConflictRaised: an assignment attempt was rejected with a conflict
//   - OptimizeFinished: a bulk optimize pass completed
package events

// Package tracking owns the multi-object tracker that turns per-frame
// detection boxes into persistent target identities.
//
// Responsibilities: constant-velocity prediction of box corners, greedy
// IoU association, and track lifecycle (creation, coasting, retirement).
// Key types: Box, Snapshot, Tracker.
//
// The tracker knows nothing about colour, shape, scoring or storage;
// those consumers read Snapshot copies and never touch live tracks.
package tracking

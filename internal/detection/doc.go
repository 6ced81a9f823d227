// Package detection defines where per-frame detection boxes come from and
// rejects malformed boxes before they reach the tracker.
//
// A Source yields one Frame per video frame. FileSource replays recorded
// detections (CSV or JSON lines); the classic colour/contour detector and
// any trained detector live elsewhere and implement the same interface.
package detection

// Package vision is the classic colour/contour balloon detector and the
// crop classifiers built on OpenCV through gocv.
//
// OpenCV is a cgo dependency, so the detector is only compiled with
// -tags=opencv. Without the tag OpenVideo returns ErrUnavailable and the
// rest of the toolkit still builds and replays recorded detections.
package vision

import "errors"

// DefaultMinArea drops contours smaller than this many pixels.
const DefaultMinArea = 150.0

// ErrUnavailable is returned by OpenVideo in builds without OpenCV.
var ErrUnavailable = errors.New("vision support not enabled: rebuild with -tags=opencv")

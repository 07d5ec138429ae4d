package analyzer

import "image"

// Focus is the detail-rich region of an image.
type Focus struct {
	Region image.Rectangle // in source image coordinates
	X, Y   float64         // region center, normalized to [0,1]
}

// FocusDetector locates the region a camera should move toward.
// ok is false when the image has no distinct region (flat or uniformly busy).
type FocusDetector interface {
	Detect(img image.Image) (f Focus, ok bool)
}

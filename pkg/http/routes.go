package http

const (
	// Image serves a rendition of an asset's image.
	Image = "Image"
	// ImageWithoutSize catches image paths that are missing the size,
	// so that they get the size error rather than a generic not-found.
	ImageWithoutSize = "ImageWithoutSize"
	Healthz          = "Healthz"
	Metrics          = "Metrics"
)

// AllowedMethods are the methods answered at all; any other gets 405.
var AllowedMethods = []string{"GET", "POST", "OPTIONS", "HEAD"}

// Package imaging provides the pixel-level operations behind the studio.
//
// Images travel between components as EncodedBitmap values: an encoded
// byte payload plus its MIME type. Decoding happens only where pixels are
// needed, and decoded images are memoized by content in a Cache.
//
// # Coordinate System
//
// Pixel coordinates are 0-based with (0,0) at the top-left corner, X
// increasing rightward and Y increasing downward. Crop selections are
// expressed in display space (the size the image is shown at) and mapped
// to natural pixels only at export time.
//
// # Adjustments
//
// Brightness and contrast are percentages in [0, 200] with 100 meaning
// unchanged. Each channel c in [0, 1] becomes
//
//	clamp((c - 0.5) * contrast/100 + 0.5 + (brightness/100 - 1), 0, 1)
//
// Two Transformer backends implement the same curve: one on
// disintegration/imaging and one on anthonynsimon/bild.
//
// # Thread Safety
//
// Cache is safe for concurrent use. CropEditor is not; callers serialize
// access to it. Everything else is stateless.
//
// # Error Handling
//
// Undecodable input wraps ErrDecode. Crops that would produce no pixels
// return ErrEmptySelection.
package imaging

// Package ffprobe runs ffprobe against a source video and exposes the few
// properties the encoder needs: container duration, size, and the primary
// video stream's dimensions.
package ffprobe

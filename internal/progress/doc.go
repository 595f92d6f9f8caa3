// Package progress turns raw encoder progress output into whole-number
// percentages.
//
// Parser consumes the key=value blocks ffmpeg writes with "-progress",
// Normalize converts a block into a 0-100 value when one can be derived, and
// Reporter decides which values are worth emitting. Missing data yields no
// value; nothing here interpolates or invents progress.
package progress

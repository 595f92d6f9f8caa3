package jobs

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSubmission marks requests rejected before any process starts.
	ErrSubmission = errors.New("submission error")
	// ErrProcessStart marks encoder processes that could not be launched.
	ErrProcessStart = errors.New("process start error")
	// ErrEncode marks encoder runs that exited with a failure.
	ErrEncode = errors.New("encode error")
	// ErrOutputStat marks failures reading the finished output size.
	ErrOutputStat = errors.New("output stat error")
)

// Wrap builds an error tagged with marker so callers can classify it with
// errors.Is while keeping operation context in the message.
func Wrap(marker error, operation, message string, err error) error {
	detail := buildDetail(operation, message)
	if marker == nil {
		marker = ErrEncode
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

func buildDetail(operation, message string) string {
	parts := make([]string, 0, 2)
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "job failure"
	}
	return strings.Join(parts, ": ")
}

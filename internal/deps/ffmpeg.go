package deps

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const encoderListTimeout = 10 * time.Second

// CheckFFmpegEncoders reports whether binary was built with each codec in
// codecs, using the listing from `ffmpeg -encoders`.
func CheckFFmpegEncoders(ctx context.Context, binary string, codecs ...string) Status {
	result := Status{
		Name:        "FFmpeg encoders",
		Command:     strings.TrimSpace(binary),
		Description: "Codecs " + strings.Join(codecs, ", "),
	}
	if result.Command == "" {
		result.Detail = "command not configured"
		return result
	}

	ctx, cancel := context.WithTimeout(ctx, encoderListTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, result.Command, "-hide_banner", "-encoders").Output()
	if err != nil {
		result.Detail = fmt.Sprintf("list encoders: %v", err)
		return result
	}

	available := parseEncoderList(out)
	var missing []string
	for _, codec := range codecs {
		if _, ok := available[codec]; !ok {
			missing = append(missing, codec)
		}
	}
	if len(missing) > 0 {
		result.Detail = "missing encoders: " + strings.Join(missing, ", ")
		return result
	}
	result.Available = true
	return result
}

// parseEncoderList extracts encoder names from lines like
// " V....D libx264              libx264 H.264 / AVC".
func parseEncoderList(out []byte) map[string]struct{} {
	names := make(map[string]struct{})
	scanner := bufio.NewScanner(bytes.NewReader(out))
	listing := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "------") {
			listing = true
			continue
		}
		if !listing {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		names[fields[1]] = struct{}{}
	}
	return names
}

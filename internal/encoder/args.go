package encoder

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"vidsqueeze/internal/config"
	"vidsqueeze/internal/jobs"
)

// Options describes one encoder invocation.
type Options struct {
	Binary         string
	VideoCodec     string
	AudioCodec     string
	Format         string
	CRF            int
	Preset         string
	PixelFormat    string
	FastStart      bool
	Resolution     jobs.Resolution
	RemoveMetadata bool
}

// OptionsFromConfig derives encoder options from configuration and the job's
// settings.
func OptionsFromConfig(enc config.Encoder, settings jobs.Settings) Options {
	return Options{
		Binary:         enc.FFmpegBinary,
		VideoCodec:     enc.VideoCodec,
		AudioCodec:     enc.AudioCodec,
		Format:         enc.Muxer(),
		CRF:            enc.CRF,
		Preset:         enc.Preset,
		PixelFormat:    enc.PixelFormat,
		FastStart:      enc.FastStart,
		Resolution:     settings.Resolution,
		RemoveMetadata: settings.RemoveMetadata,
	}
}

func (o Options) withDefaults() Options {
	def := config.Default().Encoder
	if strings.TrimSpace(o.Binary) == "" {
		o.Binary = def.FFmpegBinary
	}
	if o.VideoCodec == "" {
		o.VideoCodec = def.VideoCodec
	}
	if o.AudioCodec == "" {
		o.AudioCodec = def.AudioCodec
	}
	if o.Format == "" {
		o.Format = def.Muxer()
	}
	if o.Preset == "" {
		o.Preset = def.Preset
	}
	if o.PixelFormat == "" {
		o.PixelFormat = def.PixelFormat
	}
	if o.Resolution == "" {
		o.Resolution = jobs.DefaultResolution
	}
	return o
}

// ScaleFilter returns the video filter that resizes to the nominal height of
// res while keeping the aspect ratio with an even width.
func ScaleFilter(res jobs.Resolution) (string, error) {
	height := res.Height()
	if height == 0 {
		return "", fmt.Errorf("unsupported resolution %q", res)
	}
	return "scale=-2:" + strconv.Itoa(height), nil
}

// ScaledSize mirrors ffmpeg's handling of a -2 width: the width follows the
// source aspect ratio and is rounded to the nearest even number.
func ScaledSize(srcWidth, srcHeight int, res jobs.Resolution) (int, int) {
	height := res.Height()
	if height == 0 || srcWidth <= 0 || srcHeight <= 0 {
		return 0, 0
	}
	width := int(math.Round(float64(height)*float64(srcWidth)/float64(srcHeight)/2)) * 2
	if width < 2 {
		width = 2
	}
	return width, height
}

// BuildArgs returns the ffmpeg argument list for one encode. Progress is
// written as key=value blocks to stdout.
func BuildArgs(source, output string, opts Options) ([]string, error) {
	if strings.TrimSpace(source) == "" {
		return nil, errors.New("build encoder args: empty source path")
	}
	if strings.TrimSpace(output) == "" {
		return nil, errors.New("build encoder args: empty output path")
	}
	opts = opts.withDefaults()
	filter, err := ScaleFilter(opts.Resolution)
	if err != nil {
		return nil, fmt.Errorf("build encoder args: %w", err)
	}

	args := []string{
		"-hide_banner", "-nostdin", "-y",
		"-i", source,
		"-c:v", opts.VideoCodec,
		"-c:a", opts.AudioCodec,
		"-f", opts.Format,
		"-vf", filter,
		"-crf", strconv.Itoa(opts.CRF),
		"-preset", opts.Preset,
		"-pix_fmt", opts.PixelFormat,
	}
	if opts.FastStart && (opts.Format == "mp4" || opts.Format == "mov") {
		args = append(args, "-movflags", "+faststart")
	}
	if opts.RemoveMetadata {
		args = append(args, "-map_metadata", "-1")
	}
	args = append(args, "-progress", "pipe:1", "-nostats", output)
	return args, nil
}

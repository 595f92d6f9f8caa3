package config

const (
	defaultConfigPath         = "~/.config/vidsqueeze/config.toml"
	projectConfigName         = "vidsqueeze.toml"
	defaultStateDir           = "~/.local/share/vidsqueeze"
	defaultLogDir             = "~/.local/share/vidsqueeze/logs"
	defaultAPIBind            = "127.0.0.1:7491"
	defaultFFmpegBinary       = "ffmpeg"
	defaultFFprobeBinary      = "ffprobe"
	defaultVideoCodec         = "libx264"
	defaultAudioCodec         = "aac"
	defaultContainer          = "mp4"
	defaultCRF                = 28
	defaultPreset             = "medium"
	defaultPixelFormat        = "yuv420p"
	defaultResolution         = "720p"
	defaultProgressIntervalMS = 250
	defaultNotifyTimeout      = 10
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	maxCRF                    = 51
	maxProgressIntervalMS     = 60000
	maxNotifyTimeoutSeconds   = 300
)

var containerMuxers = map[string]string{
	"mp4":  "mp4",
	"mov":  "mov",
	"mkv":  "matroska",
	"webm": "webm",
}

var x264Presets = []string{
	"ultrafast", "superfast", "veryfast", "faster", "fast",
	"medium", "slow", "slower", "veryslow", "placebo",
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
			APIBind:  defaultAPIBind,
		},
		Encoder: Encoder{
			FFmpegBinary:  defaultFFmpegBinary,
			FFprobeBinary: defaultFFprobeBinary,
			VideoCodec:    defaultVideoCodec,
			AudioCodec:    defaultAudioCodec,
			Container:     defaultContainer,
			CRF:           defaultCRF,
			Preset:        defaultPreset,
			PixelFormat:   defaultPixelFormat,
			FastStart:     true,
		},
		Jobs: Jobs{
			DefaultResolution:  defaultResolution,
			ProgressIntervalMS: defaultProgressIntervalMS,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Success:        true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

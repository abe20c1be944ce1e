package config

const (
	defaultStorageDir            = "~/.local/share/devourer/archive"
	defaultLogDir                = "~/.local/share/devourer/logs"
	defaultProviderBaseURL       = "http://127.0.0.1:8765"
	defaultProviderTimeout       = 30
	defaultDownloadParallelism   = 4
	defaultDownloadTimeout       = 120
	defaultPostMinDelaySeconds   = 5
	defaultPostMaxDelaySeconds   = 20
	defaultClipMinDelaySeconds   = 0
	defaultClipMaxDelaySeconds   = 5
	defaultFFmpegBinary          = "ffmpeg"
	defaultVsubBinary            = "vsub"
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StorageDir: defaultStorageDir,
			LogDir:     defaultLogDir,
		},
		Provider: Provider{
			BaseURL:        defaultProviderBaseURL,
			TimeoutSeconds: defaultProviderTimeout,
		},
		Download: Download{
			Parallelism:    defaultDownloadParallelism,
			TimeoutSeconds: defaultDownloadTimeout,
		},
		RateLimit: RateLimit{
			PostMinSeconds: defaultPostMinDelaySeconds,
			PostMaxSeconds: defaultPostMaxDelaySeconds,
			ClipMinSeconds: defaultClipMinDelaySeconds,
			ClipMaxSeconds: defaultClipMaxDelaySeconds,
		},
		Tools: Tools{
			FFmpegBinary: defaultFFmpegBinary,
			VsubBinary:   defaultVsubBinary,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

package config

const (
	defaultOutputRoot          = "~/recordings"
	defaultLogDir              = "~/.local/share/stemfetch/logs"
	defaultCatalogDir          = "~/.local/share/stemfetch"
	defaultRemoteBaseURL       = "https://craig.horse"
	defaultRemoteUserAgent     = "stemfetch/0.1"
	defaultRequestTimeout      = 60
	defaultPollInterval        = 2
	defaultPollTimeout         = 600
	defaultMixdownFormat       = "opus"
	defaultOpusBitrate         = "24k"
	defaultMP3Bitrate          = "128k"
	defaultBackend             = "whisper"
	defaultModel               = "medium"
	defaultDevice              = "cpu"
	defaultLanguage            = "auto"
	defaultSimilarityThreshold = 0.9
	defaultNotifyTimeout       = 10
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputRoot: defaultOutputRoot,
			LogDir:     defaultLogDir,
			CatalogDir: defaultCatalogDir,
		},
		Remote: Remote{
			BaseURL:        defaultRemoteBaseURL,
			UserAgent:      defaultRemoteUserAgent,
			RequestTimeout: defaultRequestTimeout,
			PollInterval:   defaultPollInterval,
			PollTimeout:    defaultPollTimeout,
		},
		Download: Download{
			SpaceCheck: true,
		},
		Mixdown: Mixdown{
			Format:      defaultMixdownFormat,
			OpusBitrate: defaultOpusBitrate,
			MP3Bitrate:  defaultMP3Bitrate,
		},
		Transcription: Transcription{
			Backend:             defaultBackend,
			Model:               defaultModel,
			Device:              defaultDevice,
			Language:            defaultLanguage,
			Workers:             1,
			Dedupe:              true,
			SimilarityThreshold: defaultSimilarityThreshold,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

package config

import "time"

// DefaultTestText is the canned transcript used in test mode.
const DefaultTestText = "open google"

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	return Config{
		Wake: WakeConfig{
			Phrases:       []string{"jarvis", "hey jarvis", "jervis", "hey jervis"},
			Threshold:     0.58,
			Debounce:      500 * time.Millisecond,
			ResponseDelay: 120 * time.Millisecond,
			CommandMax:    4 * time.Second,
		},
		Audio: AudioConfig{
			Input:      "default",
			Fallback:   "default",
			SampleRate: 16000,
		},
		Commands: CommandsConfig{Path: "commands.json"},
		Sounds: SoundsConfig{
			Enable:   true,
			Dir:      "sounds",
			Greeting: "greet.wav",
			Acks:     []string{"ok1.wav", "ok2.wav", "ok3.wav"},
		},
		Model: ModelConfig{
			Dir:          "models/ggml-base.en",
			URL:          "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-base.en.bin",
			AutoDownload: true,

			DownloadTimeout: 10 * time.Minute,
		},
		Recognizer: RecognizerConfig{
			Prefer:          "auto",
			Language:        "en-US",
			PartialInterval: 500 * time.Millisecond,
			ListenWindow:    2500 * time.Millisecond,
		},
		Remote: RemoteConfig{
			GRPC:        "127.0.0.1:50051",
			DialTimeout: 3 * time.Second,
			CallTimeout: 15 * time.Second,
		},
		Channel: ChannelConfig{Addr: "127.0.0.1:8765"},
		Debug:   DebugConfig{},
		Test:    TestConfig{Text: DefaultTestText},
	}
}

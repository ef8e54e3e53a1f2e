package config

import "fmt"

type Config struct {
	Server  ServerConfig
	Service ServiceConfig
	Chat    ChatConfig
	Profile ProfileConfig
	Storage StorageConfig
	OpenAI  OpenAIConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port int
}

// ServiceConfig points the chat client at a running kaiwa server.
type ServiceConfig struct {
	BaseURL string
}

type ChatConfig struct {
	Mock        bool
	Model       string
	Temperature float64
}

type ProfileConfig struct {
	Model       string
	Temperature float64
}

type StorageConfig struct {
	DataDir string
}

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 3000,
		},
		Service: ServiceConfig{
			BaseURL: "http://localhost:3000",
		},
		Chat: ChatConfig{
			Mock:        false,
			Model:       "gpt-4o-mini",
			Temperature: 0.7,
		},
		Profile: ProfileConfig{
			Model:       "gpt-4o-mini",
			Temperature: 0.3,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the JSON file backend at
// $XDG_CONFIG_HOME/kaiwa/config.json, then applies KAIWA_* environment
// variable overrides on top.
//
// The OpenAI API key is not validated here: only the server needs it,
// and the chat client works without one in mock mode. Commands that
// need the key call RequireAPIKey.
func Load() (Config, error) {
	return loadWith(newFileBackend())
}

func loadWith(b Backend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	return cfg, nil
}

// RequireAPIKey fails when no OpenAI API key is configured.
func (c Config) RequireAPIKey() error {
	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("missing required config: OpenAI API key. " +
			"Set it via environment variable KAIWA_OPENAI_API_KEY")
	}
	return nil
}

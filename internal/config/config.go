package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"agentdesk/internal/persona"

	"github.com/BurntSushi/toml"
)

// EnvPath names the environment variable that overrides the config location.
const EnvPath = "AGENTDESK_CONFIG"

type Config struct {
	DefaultLLM string                `toml:"default_llm"`
	LLMs       map[string]*LLMConfig `toml:"llm"`
	Completion CompletionConfig      `toml:"completion"`
	Gateway    GatewayConfig         `toml:"gateway"`
	Tools      ToolsConfig           `toml:"tools"`
	DB         DBConfig              `toml:"db"`
	Trace      TraceConfig           `toml:"trace"`
	Personas   []persona.Spec        `toml:"persona"`
}

type LLMConfig struct {
	Model   string `toml:"model"`
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
}

type CompletionConfig struct {
	// Temperature 0 is sent to the provider; a negative value omits it.
	Temperature float64       `toml:"temperature"`
	MaxTokens   int64         `toml:"max_tokens"`
	Timeout     time.Duration `toml:"timeout"`
}

type GatewayConfig struct {
	Addr string `toml:"addr"`
}

type ToolsConfig struct {
	Timeout   time.Duration   `toml:"timeout"`
	Wikipedia WikipediaConfig `toml:"wikipedia"`
	WebSearch WebSearchConfig `toml:"web_search"`
	CodeEval  CodeEvalConfig  `toml:"code_eval"`
}

type WikipediaConfig struct {
	Language  string `toml:"language"`
	BaseURL   string `toml:"base_url"`
	Sentences int    `toml:"sentences"`
}

type WebSearchConfig struct {
	// Backend is "brave" or "duckduckgo". Empty picks brave when a key is set.
	Backend       string `toml:"backend"`
	BraveAPIKey   string `toml:"brave_api_key"`
	DuckDuckGoURL string `toml:"duckduckgo_url"`
	ResultCount   int    `toml:"result_count"`
}

type CodeEvalConfig struct {
	Enabled bool          `toml:"enabled"`
	Timeout time.Duration `toml:"timeout"`
}

type DBConfig struct {
	Path    string `toml:"path"`
	Journal bool   `toml:"journal"`
}

type TraceConfig struct {
	Endpoint string `toml:"endpoint"`
	URLPath  string `toml:"url_path"`
	APIKey   string `toml:"api_key"`
	Insecure bool   `toml:"insecure"`
}

func Default() *Config {
	return &Config{
		DefaultLLM: "openai",
		LLMs: map[string]*LLMConfig{
			"openai": {
				Model:   "gpt-4o-mini",
				BaseURL: "https://api.openai.com/v1",
			},
		},
		Completion: CompletionConfig{
			Temperature: 0.7,
			MaxTokens:   500,
			Timeout:     30 * time.Second,
		},
		Gateway: GatewayConfig{
			Addr: ":8484",
		},
		Tools: ToolsConfig{
			Timeout: 8 * time.Second,
			Wikipedia: WikipediaConfig{
				Language:  "en",
				Sentences: 2,
			},
			WebSearch: WebSearchConfig{
				ResultCount: 2,
			},
			CodeEval: CodeEvalConfig{
				Enabled: true,
				Timeout: 2 * time.Second,
			},
		},
		DB: DBConfig{
			Path:    defaultDBPath(),
			Journal: true,
		},
	}
}

// Load reads the config at path, or at the default location when path is
// empty. A missing default file is not an error; a missing explicit one is.
// Provider keys left empty are taken from OPENAI_API_KEY and BRAVE_API_KEY.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = os.Getenv(EnvPath)
		explicit = path != ""
	}
	if !explicit {
		path = configPath()
	}

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", path, err)
		}
	} else if explicit {
		return nil, err
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		for _, l := range cfg.LLMs {
			if l.APIKey == "" {
				l.APIKey = key
			}
		}
	}
	if key := os.Getenv("BRAVE_API_KEY"); key != "" && cfg.Tools.WebSearch.BraveAPIKey == "" {
		cfg.Tools.WebSearch.BraveAPIKey = key
	}
}

func (c *Config) Validate() error {
	if _, ok := c.LLMs[c.DefaultLLM]; !ok {
		return fmt.Errorf("default LLM %q not found in config", c.DefaultLLM)
	}
	if c.Completion.Temperature > 2 {
		return fmt.Errorf("completion temperature %v is above 2", c.Completion.Temperature)
	}
	switch c.Tools.WebSearch.Backend {
	case "", "brave", "duckduckgo":
	default:
		return fmt.Errorf("unknown web search backend %q", c.Tools.WebSearch.Backend)
	}
	if c.Tools.WebSearch.Backend == "brave" && c.Tools.WebSearch.BraveAPIKey == "" {
		return fmt.Errorf("web search backend brave requires brave_api_key")
	}
	return nil
}

// LLM returns the default completion model settings.
func (c *Config) LLM() *LLMConfig {
	return c.LLMs[c.DefaultLLM]
}

// SearchBackend resolves the effective web search backend.
func (c *Config) SearchBackend() string {
	if c.Tools.WebSearch.Backend != "" {
		return c.Tools.WebSearch.Backend
	}
	if c.Tools.WebSearch.BraveAPIKey != "" {
		return "brave"
	}
	return "duckduckgo"
}

func configPath() string {
	dir, _ := os.UserConfigDir()
	return filepath.Join(dir, "agentdesk", "config.toml")
}

func defaultDBPath() string {
	dir, _ := os.UserHomeDir()
	return filepath.Join(dir, ".local", "share", "agentdesk", "agentdesk.db")
}

// Package config implements the Config Store: a typed, cached view of the
// on-disk JSON configuration file, including the active/dormant state
// gate, Vault and enVector endpoints and tokens, and LLM provider
// selection.
//
// Mutation from outside the process (an operator hand-editing the file)
// is picked up via mtime-based cache invalidation; mutation that the
// process itself performs (an auto-demotion to dormant via SetState) goes
// through Store.Save so the two never race on the same file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// State is the plugin's active/dormant gate.
type State string

const (
	StateActive  State = "active"
	StateDormant State = "dormant"
)

// Config is the on-disk configuration document, marshaled verbatim to and
// from the user's config file.
type Config struct {
	State    State          `json:"state"`
	Vault    VaultConfig    `json:"vault"`
	EnVector EnVectorConfig `json:"envector"`
	LLM      LLMConfig      `json:"llm"`
	Scribe   ScribeConfig   `json:"scribe"`
	Retriever RetrieverConfig `json:"retriever"`

	// Embedder configures the embedding glue the spec's data model leaves
	// as an external collaborator (embed(text) -> vector[D]); it is not
	// part of the minimal on-disk shape, but travels alongside it so a
	// single config file can stand up the whole installation.
	Embedder EmbedderConfig `json:"embedder,omitempty"`
}

// EmbedderConfig selects and configures the embedding provider. Provider
// is "openai" or "localmini"; D is stable per installation once chosen
// (spec: e.g. 384 for the multilingual MiniLM family).
type EmbedderConfig struct {
	Provider   string `json:"provider"`
	APIKey     string `json:"api_key,omitempty"`
	Model      string `json:"model,omitempty"`
	BaseURL    string `json:"base_url,omitempty"`
	Dimensions int    `json:"dimensions,omitempty"`
}

type VaultConfig struct {
	Endpoint string `json:"endpoint"`
	Token    string `json:"token"`
}

type EnVectorConfig struct {
	Endpoint string `json:"endpoint"`
	APIKey   string `json:"api_key"`
	Index    string `json:"index"`
}

// LLMConfig names the three closed providers and their per-provider
// settings. Provider and Tier2Provider may be the literal string "auto",
// which Resolve() turns into a concrete provider name before any client
// is constructed — "auto" never reaches the client layer.
type LLMConfig struct {
	Provider     string `json:"provider"`
	Tier2Provider string `json:"tier2_provider"`

	AnthropicAPIKey string `json:"anthropic_api_key"`
	AnthropicModel  string `json:"anthropic_model"`

	OpenAIAPIKey     string `json:"openai_api_key"`
	OpenAIModel      string `json:"openai_model"`
	OpenAITier2Model string `json:"openai_tier2_model"`

	GoogleAPIKey     string `json:"google_api_key"`
	GoogleModel      string `json:"google_model"`
	GoogleTier2Model string `json:"google_tier2_model"`
}

type ScribeConfig struct {
	Tier2Enabled         bool    `json:"tier2_enabled"`
	SimilarityThreshold  float64 `json:"similarity_threshold"`
	AutoCaptureThreshold float64 `json:"auto_capture_threshold"`
}

type RetrieverConfig struct {
	TopK                int     `json:"topk"`
	ConfidenceThreshold float64 `json:"confidence_threshold"`
}

// defaults fills in documented defaults for any field left at its zero
// value after a JSON load, so a config file that omits keys still
// produces a usable Config.
func (c *Config) defaults() {
	if c.State == "" {
		c.State = StateDormant
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = "auto"
	}
	if c.Scribe.SimilarityThreshold == 0 {
		c.Scribe.SimilarityThreshold = 0.35
	}
	if c.Scribe.AutoCaptureThreshold == 0 {
		c.Scribe.AutoCaptureThreshold = 0.8
	}
	if c.Retriever.TopK == 0 {
		c.Retriever.TopK = 10
	}
	if c.Retriever.ConfidenceThreshold == 0 {
		c.Retriever.ConfidenceThreshold = 0.5
	}
}

// Resolve returns a copy of c.LLM with "auto" providers resolved to the
// first available provider. Resolution order: anthropic, openai, google —
// "available" meaning an API key is configured for it. If none are
// configured, Provider/Tier2Provider are left as "auto" and the caller's
// client construction will yield an unavailable provider, surfaced as
// llm_unavailable only where a pipeline cannot degrade around it.
func (l LLMConfig) Resolve() LLMConfig {
	resolved := l
	if l.Provider == "auto" {
		resolved.Provider = l.firstAvailable()
	}
	if l.Tier2Provider == "" || l.Tier2Provider == "auto" {
		if resolved.Tier2Provider = l.Tier2Provider; resolved.Tier2Provider == "" || resolved.Tier2Provider == "auto" {
			resolved.Tier2Provider = resolved.Provider
		}
	}
	return resolved
}

func (l LLMConfig) firstAvailable() string {
	switch {
	case l.AnthropicAPIKey != "":
		return "anthropic"
	case l.OpenAIAPIKey != "":
		return "openai"
	case l.GoogleAPIKey != "":
		return "google"
	default:
		return "auto"
	}
}

// Store is the mutable, cached view of the on-disk config file. A single
// Store instance owns the path for the lifetime of the process.
type Store struct {
	path string

	mu       sync.RWMutex
	cached   *Config
	loadedAt time.Time
	modTime  time.Time

	// envOrigin tracks which LLM API keys came from the environment
	// rather than the file, so Save never writes them back to disk.
	envOrigin map[string]bool
}

// NewStore creates a Store bound to path. It does not load the file; call
// Load (or IsActive/Snapshot, which load lazily) to populate the cache.
func NewStore(path string) *Store {
	return &Store{path: path, envOrigin: make(map[string]bool)}
}

// DefaultPath returns the stable config file path within the user's config
// directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config: resolve user config dir: %w", err)
	}
	return filepath.Join(dir, "rune", "config.json"), nil
}

// Load reads the config file from disk, applies environment overrides,
// fills in defaults, and caches the result keyed by the file's mtime. If
// the file does not exist, Load returns a fresh dormant-state default
// config without error — a fresh install starts dormant per spec.
func (s *Store) Load() (*Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *Store) loadLocked() (*Config, error) {
	info, statErr := os.Stat(s.path)
	if statErr != nil {
		if os.IsNotExist(statErr) {
			cfg := &Config{}
			cfg.defaults()
			s.applyEnvLocked(cfg)
			s.cached = cfg
			s.loadedAt = time.Now()
			return cloneConfig(cfg), nil
		}
		return nil, fmt.Errorf("config: stat %s: %w", s.path, statErr)
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", s.path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", s.path, err)
	}
	cfg.defaults()
	s.applyEnvLocked(&cfg)

	s.cached = &cfg
	s.modTime = info.ModTime()
	s.loadedAt = time.Now()
	return cloneConfig(&cfg), nil
}

// applyEnvLocked overlays environment variables onto cfg and records which
// fields originated from the environment so Save never persists them.
func (s *Store) applyEnvLocked(cfg *Config) {
	s.envOrigin = make(map[string]bool)

	if v := os.Getenv("RUNE_LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}
	if v := os.Getenv("RUNE_TIER2_LLM_PROVIDER"); v != "" {
		cfg.LLM.Tier2Provider = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.LLM.AnthropicAPIKey = v
		s.envOrigin["anthropic_api_key"] = true
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.LLM.OpenAIAPIKey = v
		s.envOrigin["openai_api_key"] = true
	}
	googleKey := os.Getenv("GOOGLE_API_KEY")
	if googleKey == "" {
		googleKey = os.Getenv("GEMINI_API_KEY")
	}
	if googleKey != "" {
		cfg.LLM.GoogleAPIKey = googleKey
		s.envOrigin["google_api_key"] = true
	}
	if v := os.Getenv("ENVECTOR_ENDPOINT"); v != "" {
		cfg.EnVector.Endpoint = v
	}
	if v := os.Getenv("ENVECTOR_API_KEY"); v != "" {
		cfg.EnVector.APIKey = v
		s.envOrigin["envector_api_key"] = true
	}
	if v := os.Getenv("RUNEVAULT_ENDPOINT"); v != "" {
		cfg.Vault.Endpoint = v
	}
	if v := os.Getenv("RUNEVAULT_TOKEN"); v != "" {
		cfg.Vault.Token = v
		s.envOrigin["runevault_token"] = true
	}
	if v := os.Getenv("RUNE_EMBEDDER_PROVIDER"); v != "" {
		cfg.Embedder.Provider = v
	}
	if v := os.Getenv("RUNE_EMBEDDER_API_KEY"); v != "" {
		cfg.Embedder.APIKey = v
		s.envOrigin["embedder_api_key"] = true
	}
}

// Snapshot returns the cached config, reloading from disk first if the
// file's mtime has advanced since the last load (or if nothing has been
// loaded yet).
func (s *Store) Snapshot() (*Config, error) {
	s.mu.RLock()
	cached := s.cached
	lastMod := s.modTime
	s.mu.RUnlock()

	if cached == nil {
		return s.Load()
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return cloneConfig(cached), nil
		}
		return nil, fmt.Errorf("config: stat %s: %w", s.path, err)
	}
	if !info.ModTime().After(lastMod) {
		return cloneConfig(cached), nil
	}
	return s.Load()
}

// IsActive reports whether the cached config's state is active, reloading
// from disk first if the file changed.
func (s *Store) IsActive() (bool, error) {
	cfg, err := s.Snapshot()
	if err != nil {
		return false, err
	}
	return cfg.State == StateActive, nil
}

// Save writes cfg to disk with 0600 permissions, omitting any field that
// was overlaid from an environment variable — those must never round-trip
// onto disk. Save then refreshes the cache so a subsequent Snapshot does
// not immediately reload what it just wrote.
func (s *Store) Save(cfg *Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := cloneConfig(cfg)
	if s.envOrigin["anthropic_api_key"] {
		out.LLM.AnthropicAPIKey = ""
	}
	if s.envOrigin["openai_api_key"] {
		out.LLM.OpenAIAPIKey = ""
	}
	if s.envOrigin["google_api_key"] {
		out.LLM.GoogleAPIKey = ""
	}
	if s.envOrigin["envector_api_key"] {
		out.EnVector.APIKey = ""
	}
	if s.envOrigin["runevault_token"] {
		out.Vault.Token = ""
	}
	if s.envOrigin["embedder_api_key"] {
		out.Embedder.APIKey = ""
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("config: create config dir: %w", err)
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("config: write %s: %w", s.path, err)
	}

	// Re-merge env overrides back into the in-memory cache: the file on
	// disk intentionally omits them, but the running process still needs
	// them.
	s.applyEnvLocked(cfg)
	s.cached = cfg
	if info, err := os.Stat(s.path); err == nil {
		s.modTime = info.ModTime()
	}
	return nil
}

// SetState persists a state transition (e.g. the fatal-infrastructure
// auto-demotion from active to dormant) and updates the cache.
func (s *Store) SetState(state State) error {
	cfg, err := s.Snapshot()
	if err != nil {
		return err
	}
	cfg.State = state
	return s.Save(cfg)
}

func cloneConfig(cfg *Config) *Config {
	c := *cfg
	return &c
}

// LoadDotEnv loads a local .env file for developer convenience, mirroring
// the teacher's FindEnvFile search: current directory, then up to 5
// parent directories. It is best-effort; a missing .env is not an error.
func LoadDotEnv() {
	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load(".env")
		return
	}

	dir, err := os.Getwd()
	if err != nil {
		return
	}
	for i := 0; i < 5; i++ {
		envPath := filepath.Join(dir, ".env")
		if _, statErr := os.Stat(envPath); statErr == nil {
			_ = godotenv.Load(envPath)
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
}

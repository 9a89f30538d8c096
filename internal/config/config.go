// Package config defines the typed settings struct and its layered
// loading: compiled-in defaults, then an optional YAML file, then
// RAGENGINE_-prefixed environment overrides, then validation. This
// replaces the source system's string-keyed configuration dict with
// the explicit field list called for by the redesign notes.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/katanaquant/ragengine/internal/domain"
	"gopkg.in/yaml.v3"
)

// BackendKind selects which store.Backend implementation is
// constructed at startup.
type BackendKind string

const (
	BackendEmbedded BackendKind = "embedded"
	BackendPostgres BackendKind = "postgres"
)

type ChunkSettings struct {
	TargetSize int  `yaml:"target_size"`
	MinSize    int  `yaml:"min_size"`
	Overlap    int  `yaml:"overlap"`
	Semantic   bool `yaml:"semantic"`
}

type EmbeddingSettings struct {
	Dim      int    `yaml:"dim"`
	Batch    int    `yaml:"batch"`
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	Endpoint string `yaml:"endpoint"`
}

type PipelineSettings struct {
	ChunkWorkers          int `yaml:"chunk_workers"`
	EmbedWorkers          int `yaml:"embed_workers"`
	StoreWorkers          int `yaml:"store_workers"`
	MaxPendingEmbeddings  int `yaml:"max_pending_embeddings"`
	ChunkQueueCapacity    int `yaml:"chunk_queue_capacity"`
	EmbedQueueCapacity    int `yaml:"embed_queue_capacity"`
	StoreQueueCapacity    int `yaml:"store_queue_capacity"`
}

type QueueSettings struct {
	DefaultPriority domain.Priority `yaml:"default_priority"`
}

type FusionSettings struct {
	K0 int `yaml:"k0"`
}

type ANNSettings struct {
	M             int `yaml:"m"`
	EfConstruction int `yaml:"ef_construction"`
	EfSearch       int `yaml:"ef_search"`
}

type PathSettings struct {
	KnowledgeBase string `yaml:"knowledge_base"`
	DataDir       string `yaml:"data_dir"`
}

type WatcherSettings struct {
	DebounceMS int `yaml:"debounce_ms"`
	BatchSize  int `yaml:"batch_size"`
}

type CacheSettings struct {
	MaxEntries int `yaml:"max_entries"`
}

type BackendSettings struct {
	Kind BackendKind `yaml:"kind"`
	DSN  string      `yaml:"dsn"`
}

type ServerSettings struct {
	HTTPAddr   string `yaml:"http_addr"`
	MCPEnabled bool   `yaml:"mcp_enabled"`
}

type LoggingSettings struct {
	Level    string `yaml:"level"`
	FilePath string `yaml:"file_path"`
}

// Settings is the full typed configuration tree for the engine.
type Settings struct {
	Chunk     ChunkSettings     `yaml:"chunk"`
	Embedding EmbeddingSettings `yaml:"embedding"`
	Pipeline  PipelineSettings  `yaml:"pipeline"`
	Queue     QueueSettings     `yaml:"queue"`
	Fusion    FusionSettings    `yaml:"fusion"`
	ANN       ANNSettings       `yaml:"ann"`
	Paths     PathSettings      `yaml:"paths"`
	Watcher   WatcherSettings   `yaml:"watcher"`
	Cache     CacheSettings     `yaml:"cache"`
	Backend   BackendSettings   `yaml:"backend"`
	Server    ServerSettings    `yaml:"server"`
	Logging   LoggingSettings   `yaml:"logging"`
}

// Default returns the compiled-in defaults, matching the values named
// throughout the component design (HNSW M=16/ef_construction=64,
// RRF k0=60, and so on).
func Default() Settings {
	return Settings{
		Chunk: ChunkSettings{
			TargetSize: 1024,
			MinSize:    10,
			Overlap:    128,
			Semantic:   true,
		},
		Embedding: EmbeddingSettings{
			Dim:      1024,
			Batch:    32,
			Provider: "static",
		},
		Pipeline: PipelineSettings{
			ChunkWorkers:         2,
			EmbedWorkers:         4,
			StoreWorkers:         1,
			MaxPendingEmbeddings: 64,
			ChunkQueueCapacity:   8,
			EmbedQueueCapacity:   8,
			StoreQueueCapacity:   2,
		},
		Queue: QueueSettings{DefaultPriority: domain.PriorityNormal},
		Fusion: FusionSettings{K0: 60},
		ANN: ANNSettings{
			M:              16,
			EfConstruction: 64,
			EfSearch:       64,
		},
		Paths: PathSettings{
			KnowledgeBase: ".",
			DataDir:       ".ragengine",
		},
		Watcher: WatcherSettings{
			DebounceMS: 200,
			BatchSize:  64,
		},
		Cache: CacheSettings{MaxEntries: 512},
		Backend: BackendSettings{Kind: BackendEmbedded},
		Server:  ServerSettings{HTTPAddr: ":8420", MCPEnabled: true},
		Logging: LoggingSettings{Level: "info", FilePath: ""},
	}
}

// Load builds Settings by layering an optional YAML file over the
// defaults, then applying environment variable overrides, then
// validating. yamlPath may be empty, in which case only defaults and
// environment variables apply.
func Load(yamlPath string) (Settings, error) {
	cfg := Default()

	if yamlPath != "" {
		data, err := os.ReadFile(yamlPath)
		if err != nil {
			if !os.IsNotExist(err) {
				return Settings{}, fmt.Errorf("read config %s: %w", yamlPath, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Settings{}, fmt.Errorf("parse config %s: %w", yamlPath, err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return Settings{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Settings{}, err
	}
	return cfg, nil
}

// envOverrides lists the RAGENGINE_-prefixed variables understood, in
// the same "flat dotted name" shape the field list in the design notes
// uses, translated to SCREAMING_SNAKE env var form.
var envOverrides = map[string]func(*Settings, string) error{
	"RAGENGINE_CHUNK_TARGET_SIZE": intSetter(func(s *Settings) *int { return &s.Chunk.TargetSize }),
	"RAGENGINE_CHUNK_MIN_SIZE":    intSetter(func(s *Settings) *int { return &s.Chunk.MinSize }),
	"RAGENGINE_CHUNK_OVERLAP":     intSetter(func(s *Settings) *int { return &s.Chunk.Overlap }),
	"RAGENGINE_CHUNK_SEMANTIC":    boolSetter(func(s *Settings) *bool { return &s.Chunk.Semantic }),
	"RAGENGINE_EMBEDDING_DIM":     intSetter(func(s *Settings) *int { return &s.Embedding.Dim }),
	"RAGENGINE_EMBEDDING_BATCH":   intSetter(func(s *Settings) *int { return &s.Embedding.Batch }),
	"RAGENGINE_EMBEDDING_PROVIDER": strSetter(func(s *Settings) *string { return &s.Embedding.Provider }),
	"RAGENGINE_EMBEDDING_MODEL":    strSetter(func(s *Settings) *string { return &s.Embedding.Model }),
	"RAGENGINE_EMBEDDING_ENDPOINT": strSetter(func(s *Settings) *string { return &s.Embedding.Endpoint }),
	"RAGENGINE_PIPELINE_CHUNK_WORKERS": intSetter(func(s *Settings) *int { return &s.Pipeline.ChunkWorkers }),
	"RAGENGINE_PIPELINE_EMBED_WORKERS": intSetter(func(s *Settings) *int { return &s.Pipeline.EmbedWorkers }),
	"RAGENGINE_PIPELINE_STORE_WORKERS": intSetter(func(s *Settings) *int { return &s.Pipeline.StoreWorkers }),
	"RAGENGINE_PIPELINE_MAX_PENDING_EMBEDDINGS": intSetter(func(s *Settings) *int { return &s.Pipeline.MaxPendingEmbeddings }),
	"RAGENGINE_FUSION_K0":         intSetter(func(s *Settings) *int { return &s.Fusion.K0 }),
	"RAGENGINE_ANN_M":             intSetter(func(s *Settings) *int { return &s.ANN.M }),
	"RAGENGINE_ANN_EF_CONSTRUCTION": intSetter(func(s *Settings) *int { return &s.ANN.EfConstruction }),
	"RAGENGINE_ANN_EF_SEARCH":     intSetter(func(s *Settings) *int { return &s.ANN.EfSearch }),
	"RAGENGINE_PATHS_KNOWLEDGE_BASE": strSetter(func(s *Settings) *string { return &s.Paths.KnowledgeBase }),
	"RAGENGINE_PATHS_DATA_DIR":    strSetter(func(s *Settings) *string { return &s.Paths.DataDir }),
	"RAGENGINE_WATCHER_DEBOUNCE_MS": intSetter(func(s *Settings) *int { return &s.Watcher.DebounceMS }),
	"RAGENGINE_WATCHER_BATCH_SIZE": intSetter(func(s *Settings) *int { return &s.Watcher.BatchSize }),
	"RAGENGINE_CACHE_MAX_ENTRIES": intSetter(func(s *Settings) *int { return &s.Cache.MaxEntries }),
	"RAGENGINE_BACKEND_KIND":      func(s *Settings, v string) error { s.Backend.Kind = BackendKind(v); return nil },
	"RAGENGINE_BACKEND_DSN":       strSetter(func(s *Settings) *string { return &s.Backend.DSN }),
	"RAGENGINE_SERVER_HTTP_ADDR":  strSetter(func(s *Settings) *string { return &s.Server.HTTPAddr }),
	"RAGENGINE_SERVER_MCP_ENABLED": boolSetter(func(s *Settings) *bool { return &s.Server.MCPEnabled }),
	"RAGENGINE_LOGGING_LEVEL":     strSetter(func(s *Settings) *string { return &s.Logging.Level }),
	"RAGENGINE_LOGGING_FILE_PATH": strSetter(func(s *Settings) *string { return &s.Logging.FilePath }),
}

func intSetter(field func(*Settings) *int) func(*Settings, string) error {
	return func(s *Settings, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("expected integer, got %q", v)
		}
		*field(s) = n
		return nil
	}
}

func boolSetter(field func(*Settings) *bool) func(*Settings, string) error {
	return func(s *Settings, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("expected boolean, got %q", v)
		}
		*field(s) = b
		return nil
	}
}

func strSetter(field func(*Settings) *string) func(*Settings, string) error {
	return func(s *Settings, v string) error {
		*field(s) = v
		return nil
	}
}

func applyEnvOverrides(cfg *Settings) error {
	for key, setter := range envOverrides {
		v, ok := os.LookupEnv(key)
		if !ok || v == "" {
			continue
		}
		if err := setter(cfg, v); err != nil {
			return fmt.Errorf("env %s: %w", key, err)
		}
	}
	return nil
}

// Validate enforces the business rules that must hold before the
// orchestrator starts wiring components. A failure here is always a
// fatal, non-retryable startup error (ConfigInvalid).
func (s Settings) Validate() error {
	var problems []string

	if s.Chunk.TargetSize <= 0 {
		problems = append(problems, "chunk.target_size must be positive")
	}
	if s.Chunk.MinSize < 0 || s.Chunk.MinSize > s.Chunk.TargetSize {
		problems = append(problems, "chunk.min_size must be between 0 and chunk.target_size")
	}
	if s.Chunk.Overlap < 0 || s.Chunk.Overlap >= s.Chunk.TargetSize {
		problems = append(problems, "chunk.overlap must be non-negative and smaller than chunk.target_size")
	}
	if s.Embedding.Dim <= 0 {
		problems = append(problems, "embedding.dim must be positive")
	}
	if s.Embedding.Batch <= 0 {
		problems = append(problems, "embedding.batch must be positive")
	}
	if s.Pipeline.ChunkWorkers <= 0 || s.Pipeline.EmbedWorkers <= 0 || s.Pipeline.StoreWorkers <= 0 {
		problems = append(problems, "pipeline worker counts must all be positive")
	}
	if s.Pipeline.MaxPendingEmbeddings <= 0 {
		problems = append(problems, "pipeline.max_pending_embeddings must be positive")
	}
	if s.Fusion.K0 <= 0 {
		problems = append(problems, "fusion.k0 must be positive")
	}
	if s.ANN.M <= 0 || s.ANN.EfConstruction <= 0 {
		problems = append(problems, "ann.m and ann.ef_construction must be positive")
	}
	if s.Paths.KnowledgeBase == "" {
		problems = append(problems, "paths.knowledge_base must not be empty")
	}
	switch s.Backend.Kind {
	case BackendEmbedded:
	case BackendPostgres:
		if s.Backend.DSN == "" {
			problems = append(problems, "backend.dsn is required when backend.kind is postgres")
		}
	default:
		problems = append(problems, fmt.Sprintf("backend.kind %q is not one of embedded, postgres", s.Backend.Kind))
	}
	if s.Cache.MaxEntries <= 0 {
		problems = append(problems, "cache.max_entries must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

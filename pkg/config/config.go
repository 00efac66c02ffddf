package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Vector   VectorConfig
	SQLite   SQLiteConfig
	Redis    RedisConfig
	LLM      LLMConfig
	Chunking ChunkingConfig
	Resolver ResolverConfig
	Session  SessionConfig
	Search   SearchConfig
	Docs     DocsConfig
	Logging  LoggingConfig
}

// DocsConfig points at the course document folder ingested on startup.
type DocsConfig struct {
	Path string
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
}

// VectorConfig selects and configures the vector store.
// Provider is "milvus" or "memory" (in-process, for development).
type VectorConfig struct {
	Provider          string
	Endpoint          string
	APIKey            string
	CatalogCollection string
	ContentCollection string
	Dim               int
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	TTLHours int
}

type LLMConfig struct {
	APIKey         string
	Model          string
	EmbeddingModel string
	Temperature    float32
	MaxTokens      int
}

type ChunkingConfig struct {
	MaxChars int
	Overlap  int
}

// ResolverConfig tunes course-name resolution. MaxDistance is the
// accept/reject cutoff for the catalog 1-NN match: exact titles score
// near 0, legitimate partial matches stay below ~1.6, unrelated
// strings land at 1.7 and above.
type ResolverConfig struct {
	MaxDistance float32
}

type SessionConfig struct {
	MaxExchanges int
}

type SearchConfig struct {
	MaxResults int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/course-rag")

	viper.SetEnvPrefix("COURSE_RAG")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8000)
	viper.SetDefault("server.readTimeout", 60)
	viper.SetDefault("server.writeTimeout", 60)
	viper.SetDefault("server.bodyLimit", 10485760)

	viper.SetDefault("vector.provider", "milvus")
	viper.SetDefault("vector.endpoint", "localhost:19530")
	viper.SetDefault("vector.catalogCollection", "course_catalog")
	viper.SetDefault("vector.contentCollection", "course_content")
	viper.SetDefault("vector.dim", 1536)

	viper.SetDefault("sqlite.path", "./data/courserag.db")

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.ttlHours", 72)

	viper.SetDefault("llm.model", "gpt-4o")
	viper.SetDefault("llm.embeddingModel", "text-embedding-3-small")
	viper.SetDefault("llm.temperature", 0)
	viper.SetDefault("llm.maxTokens", 800)

	viper.SetDefault("chunking.maxChars", 800)
	viper.SetDefault("chunking.overlap", 100)

	viper.SetDefault("resolver.maxDistance", 1.65)

	viper.SetDefault("session.maxExchanges", 2)

	viper.SetDefault("search.maxResults", 5)

	viper.SetDefault("docs.path", "./docs")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}

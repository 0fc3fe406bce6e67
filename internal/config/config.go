package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bridgewise/backend/internal/util"
	"github.com/bridgewise/backend/pkg/community"
	"github.com/bridgewise/backend/pkg/graph"
	"github.com/bridgewise/backend/pkg/rank"
)

// Contact sources.
const (
	SourcePostgres = "postgres"
	SourceNeo4j    = "neo4j"
	SourceJSON     = "json"
)

// Artifact backends.
const (
	BackendFile = "file"
	BackendS3   = "s3"
)

// Config is the process configuration shared by all binaries.
type Config struct {
	Debug     bool
	LogFormat string

	Contacts  ContactsConfig
	Database  DatabaseConfig
	Neo4j     Neo4jConfig
	Embedding EmbeddingConfig
	Builder   BuilderConfig
	Community community.Options
	Rank      RankConfig
	Artifacts ArtifactConfig
	S3        S3Config
	Queue     QueueConfig
	Server    ServerConfig
}

type ContactsConfig struct {
	Source   string
	JSONPath string
}

type DatabaseConfig struct {
	URL            string
	MigrationsPath string
	AutoMigrate    bool
}

type Neo4jConfig struct {
	URI      string
	User     string
	Password string
	Database string
}

// EmbeddingConfig selects the embedding provider. Adapter "none" disables
// vector similarity entirely.
type EmbeddingConfig struct {
	Adapter       string
	Model         string
	URL           string
	Key           string
	Dimensions    int
	MaxTokens     int
	Timeout       time.Duration
	Parallel      int
	RatePerSecond float64
	Burst         int
	CacheSize     int
	BatchSize     int
}

type BuilderConfig struct {
	MinSharedSkills   int
	WeightMode        graph.WeightMode
	CompanyBoost      float64
	SchoolBoost       float64
	JobEdgeWeight     float64
	ExcludeIDs        []string
	TitleSynonymsPath string
	EmbedTopN         int
	EmbedScale        float64
	DropIsolated      bool
	Parallelism       int
}

type RankConfig struct {
	Weights      rank.Weights
	EgoMetric    rank.EgoMetric
	EgoRadius    int
	GlobalMetric graph.GlobalMetric
	EmbedTimeout time.Duration
	MaxTopK      int
	WriteBack    bool
}

type ArtifactConfig struct {
	Backend string
	Dir     string
	Prefix  string
	Keep    int
}

type S3Config struct {
	Region         string
	Endpoint       string
	AccessKey      string
	SecretKey      string
	Bucket         string
	PublicEndpoint string
}

type QueueConfig struct {
	User     string
	Password string
	Host     string
	Port     string
}

// URL returns the AMQP connection string, or "" when no host is set.
func (q QueueConfig) URL() string {
	if q.Host == "" {
		return ""
	}
	return fmt.Sprintf("amqp://%s:%s@%s:%s/", q.User, q.Password, q.Host, q.Port)
}

type ServerConfig struct {
	Port           string
	CORSOrigins    []string
	BodyLimit      string
	AuthURL        string
	MasterAPIKey   string
	MasterUserID   int64
	MasterUserRole string
}

// Load reads and validates the configuration from the environment. Call
// util.LoadEnv first to pick up a .env file.
func Load() (*Config, error) {
	cfg := Read()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read reads the configuration from the environment without validating it,
// for callers that apply overrides first.
func Read() *Config {
	return &Config{
		Debug:     util.GetEnvBool("DEBUG", false),
		LogFormat: util.GetEnv("LOG_FORMAT"),
		Contacts: ContactsConfig{
			Source:   strings.ToLower(util.GetEnvString("CONTACT_SOURCE", SourcePostgres)),
			JSONPath: util.GetEnv("JOBS_JSON_PATH"),
		},
		Database: DatabaseConfig{
			URL:            util.GetEnv("DATABASE_URL"),
			MigrationsPath: util.GetEnvString("MIGRATIONS_PATH", "file://migrations"),
			AutoMigrate:    util.GetEnvBool("AUTO_MIGRATE", true),
		},
		Neo4j: Neo4jConfig{
			URI:      util.GetEnv("NEO4J_URI"),
			User:     util.GetEnvString("NEO4J_USER", "neo4j"),
			Password: util.GetEnv("NEO4J_PASS"),
			Database: util.GetEnv("NEO4J_DATABASE"),
		},
		Embedding: EmbeddingConfig{
			Adapter:       strings.ToLower(util.GetEnvString("AI_ADAPTER", "openai")),
			Model:         util.GetEnvString("AI_EMBED_MODEL", "text-embedding-3-small"),
			URL:           util.GetEnv("AI_EMBED_URL"),
			Key:           util.GetEnv("AI_EMBED_KEY"),
			Dimensions:    int(util.GetEnvNumeric("AI_EMBED_DIM", 0)),
			MaxTokens:     int(util.GetEnvNumeric("AI_EMBED_MAX_TOKENS", 8000)),
			Timeout:       util.GetEnvDuration("AI_EMBED_TIMEOUT", time.Minute),
			Parallel:      int(util.GetEnvNumeric("AI_PARALLEL_REQ", 4)),
			RatePerSecond: util.GetEnvFloat("AI_EMBED_RPS", 0),
			Burst:         int(util.GetEnvNumeric("AI_EMBED_BURST", 1)),
			CacheSize:     int(util.GetEnvNumeric("AI_EMBED_CACHE_SIZE", 1024)),
			BatchSize:     int(util.GetEnvNumeric("AI_EMBED_BATCH_SIZE", 64)),
		},
		Builder: BuilderConfig{
			MinSharedSkills:   int(util.GetEnvNumeric("SIMILAR_MIN_SHARED_SKILLS", 4)),
			WeightMode:        graph.WeightMode(strings.ToLower(util.GetEnvString("SIMILAR_WEIGHT_MODE", string(graph.WeightCount)))),
			CompanyBoost:      util.GetEnvFloat("SIMILAR_BOOST_COMPANY", 1.0),
			SchoolBoost:       util.GetEnvFloat("SIMILAR_BOOST_SCHOOL", 0.5),
			JobEdgeWeight:     util.GetEnvFloat("SIMILAR_JOB_EDGE_WEIGHT", 1.0),
			ExcludeIDs:        util.GetEnvList("SIMILAR_EXCLUDE_IDS"),
			TitleSynonymsPath: util.GetEnvString("TITLE_SYNONYMS_PATH", util.GetEnv("TITLE_SYNONYMS_JSON")),
			EmbedTopN:         int(util.GetEnvNumeric("SIMILAR_EMBED_TOP_K", 0)),
			EmbedScale:        util.GetEnvFloat("SIMILAR_EMBED_SCALE", 1.0),
			DropIsolated:      !util.GetEnvBool("SIMILAR_INCLUDE_ISOLATED", true),
			Parallelism:       int(util.GetEnvNumeric("GRAPH_PARALLELISM", 0)),
		},
		Community: community.Options{
			MaxIterations:  int(util.GetEnvNumeric("LOUVAIN_MAX_ITER", community.DefaultMaxIterations)),
			Resolution:     util.GetEnvFloat("LOUVAIN_RESOLUTION", community.DefaultResolution),
			LabelDominance: util.GetEnvFloat("CLUSTER_LABEL_DOMINANCE", 0),
		},
		Rank: RankConfig{
			Weights: rank.Weights{
				AlphaSkills: util.GetEnvFloat("RANK_ALPHA_SKILLS", rank.DefaultWeights().AlphaSkills),
				BetaJob:     util.GetEnvFloat("RANK_BETA_JOB", rank.DefaultWeights().BetaJob),
				GammaStruct: util.GetEnvFloat("RANK_GAMMA_STRUCT", rank.DefaultWeights().GammaStruct),
				EgoShare:    util.GetEnvFloat("RANK_EGO_SHARE", rank.DefaultWeights().EgoShare),
			},
			EgoMetric:    rank.EgoMetric(util.GetEnv("RANK_EGO_METRIC")),
			EgoRadius:    int(util.GetEnvNumeric("RANK_EGO_RADIUS", rank.DefaultEgoRadius)),
			GlobalMetric: graph.GlobalMetric(util.GetEnv("RANK_GLOBAL_METRIC")),
			EmbedTimeout: util.GetEnvDuration("RANK_EMBED_TIMEOUT", rank.DefaultEmbedTimeout),
			MaxTopK:      int(util.GetEnvNumeric("RANK_MAX_TOP_K", rank.DefaultMaxTopK)),
			WriteBack:    util.GetEnvBool("RANK_WRITE", false),
		},
		Artifacts: ArtifactConfig{
			Backend: strings.ToLower(util.GetEnvString("ARTIFACT_BACKEND", BackendFile)),
			Dir:     util.GetEnvString("ARTIFACT_DIR", "data/artifacts"),
			Prefix:  util.GetEnvString("ARTIFACT_PREFIX", "artifacts"),
			Keep:    int(util.GetEnvNumeric("ARTIFACT_KEEP", 5)),
		},
		S3: S3Config{
			Region:         util.GetEnv("AWS_REGION"),
			Endpoint:       util.GetEnv("AWS_ENDPOINT"),
			AccessKey:      util.GetEnv("AWS_ACCESS_KEY"),
			SecretKey:      util.GetEnv("AWS_SECRET_KEY"),
			Bucket:         util.GetEnv("AWS_BUCKET"),
			PublicEndpoint: util.GetEnv("AWS_PUBLIC_ENDPOINT"),
		},
		Queue: QueueConfig{
			User:     util.GetEnv("RABBITMQ_USER"),
			Password: util.GetEnv("RABBITMQ_PASSWORD"),
			Host:     util.GetEnv("RABBITMQ_HOST"),
			Port:     util.GetEnvString("RABBITMQ_PORT", "5672"),
		},
		Server: ServerConfig{
			Port:           util.GetEnvString("PORT", "4000"),
			CORSOrigins:    util.GetEnvList("CORS_ORIGINS"),
			BodyLimit:      util.GetEnvString("BODY_LIMIT", "2M"),
			AuthURL:        util.GetEnv("AUTH_URL"),
			MasterAPIKey:   util.GetEnv("MASTER_API_KEY"),
			MasterUserID:   int64(util.GetEnvNumeric("MASTER_USER_ID", 0)),
			MasterUserRole: util.GetEnv("MASTER_USER_ROLE"),
		},
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.Contacts.Source {
	case SourcePostgres:
		if c.Database.URL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres contact source"))
		}
	case SourceNeo4j:
		if c.Neo4j.URI == "" {
			errs = append(errs, errors.New("NEO4J_URI is required for the neo4j contact source"))
		}
	case SourceJSON:
		if c.Contacts.JSONPath == "" {
			errs = append(errs, errors.New("JOBS_JSON_PATH is required for the json contact source"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown contact source %q", c.Contacts.Source))
	}

	switch c.Embedding.Adapter {
	case "openai", "ollama", "none":
	default:
		errs = append(errs, fmt.Errorf("unknown AI_ADAPTER %q", c.Embedding.Adapter))
	}

	switch c.Artifacts.Backend {
	case BackendFile:
		if c.Artifacts.Dir == "" {
			errs = append(errs, errors.New("ARTIFACT_DIR must not be empty"))
		}
	case BackendS3:
		if c.S3.Bucket == "" {
			errs = append(errs, errors.New("AWS_BUCKET is required for the s3 artifact backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown artifact backend %q", c.Artifacts.Backend))
	}

	if c.Builder.WeightMode != graph.WeightCount && c.Builder.WeightMode != graph.WeightJaccard {
		errs = append(errs, fmt.Errorf("unknown SIMILAR_WEIGHT_MODE %q", c.Builder.WeightMode))
	}
	if err := c.Community.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Rank.Weights.Validate(); err != nil {
		errs = append(errs, err)
	}
	if _, err := rank.ParseEgoMetric(string(c.Rank.EgoMetric)); err != nil {
		errs = append(errs, err)
	}
	if _, err := graph.ParseGlobalMetric(string(c.Rank.GlobalMetric)); err != nil {
		errs = append(errs, err)
	}
	if c.Rank.MaxTopK <= 0 {
		errs = append(errs, errors.New("RANK_MAX_TOP_K must be positive"))
	}

	return errors.Join(errs...)
}

// BuilderParams converts the builder section, loading the title synonym
// table when a path is configured.
func (c *Config) BuilderParams() (graph.NewBuilderParams, error) {
	b := c.Builder
	params := graph.NewBuilderParams{
		MinSharedSkills: b.MinSharedSkills,
		WeightMode:      b.WeightMode,
		CompanyBoost:    b.CompanyBoost,
		SchoolBoost:     b.SchoolBoost,
		JobEdgeWeight:   b.JobEdgeWeight,
		ExcludeIDs:      b.ExcludeIDs,
		EmbedTopN:       b.EmbedTopN,
		EmbedScale:      b.EmbedScale,
		DropIsolated:    b.DropIsolated,
		Parallelism:     b.Parallelism,
	}
	if b.TitleSynonymsPath != "" {
		syn, err := graph.LoadTitleSynonyms(b.TitleSynonymsPath)
		if err != nil {
			return params, fmt.Errorf("failed to load title synonyms: %w", err)
		}
		params.TitleSynonyms = syn
	}
	return params, nil
}

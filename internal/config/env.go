package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL  string
	AIAPIKey     string
	JWTSecret    string
	EmbedModel   string
	EmbedDim     int
	GenModel     string
	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string
	BucketName   string
	CorpusDir    string

	ChunkTargetTokens  int
	ChunkOverlapTokens int
	EmbedBatch         int
	EmbedMaxRetries    int
	RetrievalTopK      int
	HouseSystem        string // "equal" or "whole-sign"
	NominatimURL       string // empty = public OpenStreetMap instance

	Port string
}

// LoadConfig loads the environment variables and returns the config.
// Missing required keys are fatal at startup.
func LoadConfig() *Config {

	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		AIAPIKey:     getEnv("GEMINI_API_KEY", ""),
		JWTSecret:    getEnv("JWT_SECRET", ""),
		EmbedModel:   getEnv("EMBED_MODEL", "text-embedding-004"),
		EmbedDim:     getEnvInt("EMBED_DIM", 768),
		GenModel:     getEnv("GEN_MODEL", "gemini-1.5-flash"),
		AwsAccessKey: getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey: getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:    getEnv("AWS_REGION", "us-east-2"),
		BucketName:   getEnv("BUCKET_NAME", "vastuai-books"),
		CorpusDir:    getEnv("CORPUS_DIR", ""),

		ChunkTargetTokens:  getEnvInt("CHUNK_TARGET_TOKENS", 320),
		ChunkOverlapTokens: getEnvInt("CHUNK_OVERLAP_TOKENS", 48),
		EmbedBatch:         getEnvInt("EMBED_BATCH", 16),
		EmbedMaxRetries:    getEnvInt("EMBED_MAX_RETRIES", 4),
		RetrievalTopK:      getEnvInt("RETRIEVAL_TOP_K", 5),
		HouseSystem:        getEnv("HOUSE_SYSTEM", "equal"),
		NominatimURL:       getEnv("NOMINATIM_URL", ""),

		Port: getEnv("PORT", "8080"),
	}

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL not set")
	}
	if cfg.AIAPIKey == "" {
		log.Fatal("GEMINI_API_KEY not set")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET not set")
	}

	return cfg
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("WARN: %s=%q not an int, using default %d", key, v, def)
		return def
	}
	return n
}

package config

import (
	"os"
	"strconv"
	"strings"
)

// Retrieval holds the tunable retrieval parameters.
type Retrieval struct {
	TopK             int     // chunks returned per query
	FetchK           int     // over-fetch size for the MMR candidate pool
	MMRLambda        float64 // relevance/diversity trade-off, 1.0 = pure relevance
	FilterMultiplier int     // over-fetch factor for client-side metadata filtering
}

// Verification holds the answer-verification parameters.
type Verification struct {
	DefaultThreshold  float64 // composite score needed to validate an answer
	SupplementalLimit int     // chunks fetched by the one-shot supplementary search
}

type Config struct {
	Env  string
	Port string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	OllamaURL      string
	EmbeddingModel string
	GenerationURL  string
	GeneratorModel string
	JudgeURL       string
	JudgeModel     string
	OllamaTimeout  int // seconds, applies to every model call

	ArxivURL     string
	ArxivTimeout int // seconds

	AnswerMaxTokens int
	EmbedCacheSize  int
	RecommendN      int
	Retrieval       Retrieval
	Verification    Verification
}

func Load() *Config {
	return &Config{
		Env:  getEnv("ENV", "development"),
		Port: getEnv("PORT", "9020"),

		DBHost:     getEnv("DB_HOST", "rag-db"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "rag_user"),
		DBPassword: getSecret("DB_PASSWORD", "DB_PASSWORD_FILE", "rag_password"),
		DBName:     getEnv("DB_NAME", "rag_db"),

		OllamaURL:      getEnv("OLLAMA_URL", "http://ollama:11434"),
		EmbeddingModel: getEnv("EMBEDDING_MODEL", "nomic-embed-text"),
		GenerationURL:  getEnvWithAlt("GENERATION_URL", "OLLAMA_URL", "http://ollama:11434"),
		GeneratorModel: getEnv("GENERATION_MODEL", "deepseek-r1"),
		JudgeURL:       getEnvWithAlt("JUDGE_URL", "GENERATION_URL", "http://ollama:11434"),
		JudgeModel:     getEnvWithAlt("JUDGE_MODEL", "GENERATION_MODEL", "deepseek-r1"),
		OllamaTimeout:  getEnvInt("OLLAMA_TIMEOUT", 120),

		ArxivURL:     getEnv("ARXIV_API_URL", "http://export.arxiv.org"),
		ArxivTimeout: getEnvInt("ARXIV_TIMEOUT", 10),

		AnswerMaxTokens: getEnvInt("RAG_DEFAULT_MAX_TOKENS", 768),
		EmbedCacheSize:  getEnvInt("EMBED_CACHE_SIZE", 4096),
		RecommendN:      getEnvInt("RECOMMEND_DEFAULT_N", 3),
		Retrieval: Retrieval{
			TopK:             getEnvInt("RAG_TOP_K", 5),
			FetchK:           getEnvInt("RAG_FETCH_K", 20),
			MMRLambda:        getEnvFloat("RAG_MMR_LAMBDA", 0.6),
			FilterMultiplier: getEnvInt("RAG_FILTER_MULTIPLIER", 3),
		},
		Verification: Verification{
			DefaultThreshold:  getEnvFloat("RAG_VALIDATION_THRESHOLD", 0.7),
			SupplementalLimit: getEnvInt("RAG_SUPPLEMENTAL_LIMIT", 5),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// getSecret reads the value from envKey, or from the file named by fileEnvKey
// (the usual Docker secrets indirection), falling back to a default.
func getSecret(envKey, fileEnvKey, fallback string) string {
	if value, ok := os.LookupEnv(envKey); ok {
		return value
	}
	if filePath, ok := os.LookupEnv(fileEnvKey); ok {
		content, err := os.ReadFile(filePath)
		if err == nil {
			return strings.TrimSpace(string(content))
		}
	}
	return fallback
}

func getEnvWithAlt(key, altKey, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	if value, ok := os.LookupEnv(altKey); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoad_RetrievalDefaults(t *testing.T) {
	for _, key := range []string{"RAG_TOP_K", "RAG_FETCH_K", "RAG_MMR_LAMBDA", "RAG_FILTER_MULTIPLIER"} {
		_ = os.Unsetenv(key)
	}

	cfg := Load()

	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, 20, cfg.Retrieval.FetchK)
	assert.Equal(t, 0.6, cfg.Retrieval.MMRLambda)
	assert.Equal(t, 3, cfg.Retrieval.FilterMultiplier)
}

func TestLoad_RetrievalFromEnv(t *testing.T) {
	t.Setenv("RAG_TOP_K", "8")
	t.Setenv("RAG_FETCH_K", "40")
	t.Setenv("RAG_MMR_LAMBDA", "0.4")

	cfg := Load()

	assert.Equal(t, 8, cfg.Retrieval.TopK)
	assert.Equal(t, 40, cfg.Retrieval.FetchK)
	assert.Equal(t, 0.4, cfg.Retrieval.MMRLambda)
}

func TestLoad_VerificationDefaults(t *testing.T) {
	for _, key := range []string{"RAG_VALIDATION_THRESHOLD", "RAG_SUPPLEMENTAL_LIMIT"} {
		_ = os.Unsetenv(key)
	}

	cfg := Load()

	assert.Equal(t, 0.7, cfg.Verification.DefaultThreshold)
	assert.Equal(t, 5, cfg.Verification.SupplementalLimit)
}

func TestLoad_JudgeFallsBackToGenerationModel(t *testing.T) {
	_ = os.Unsetenv("JUDGE_MODEL")
	t.Setenv("GENERATION_MODEL", "qwen3")

	cfg := Load()

	assert.Equal(t, "qwen3", cfg.GeneratorModel)
	assert.Equal(t, "qwen3", cfg.JudgeModel)
}

func TestLoad_InvalidIntFallsBack(t *testing.T) {
	t.Setenv("RAG_TOP_K", "not-a-number")

	cfg := Load()

	assert.Equal(t, 5, cfg.Retrieval.TopK)
}

func TestLoad_SecretFromFile(t *testing.T) {
	_ = os.Unsetenv("DB_PASSWORD")
	f, err := os.CreateTemp(t.TempDir(), "secret")
	assert.NoError(t, err)
	_, err = f.WriteString("s3cret\n")
	assert.NoError(t, err)
	assert.NoError(t, f.Close())

	t.Setenv("DB_PASSWORD_FILE", f.Name())

	cfg := Load()
	assert.Equal(t, "s3cret", cfg.DBPassword)
}

package config_test

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barad1tos/reconciler/internal/config"
)

func newViper() *viper.Viper {
	v := viper.New()
	config.ApplyDefaults(v)
	return v
}

func TestLoadAppliesDefaultScoringWeights(t *testing.T) {
	cfg, err := config.Load(newViper())
	require.NoError(t, err)
	assert.Equal(t, 85, cfg.YearRetrieval.DefinitiveThreshold)
	assert.Equal(t, 1900, cfg.YearRetrieval.MinValidYear)
	assert.Equal(t, 20, cfg.YearRetrieval.Scoring.ArtistExact)
	assert.Contains(t, cfg.YearRetrieval.RemasterKeywords, "deluxe")
}

func TestLoadFailsWhenRequiredKeyMissing(t *testing.T) {
	v := viper.New()
	_, err := config.Load(v)
	assert.Error(t, err)
}

func TestLoadRejectsNonPositiveBatchSize(t *testing.T) {
	v := newViper()
	v.Set("year_retrieval.processing.batch_size", 0)
	_, err := config.Load(v)
	assert.Error(t, err)
}

func TestLoadOverridesDefaultViaSet(t *testing.T) {
	v := newViper()
	v.Set("year_retrieval.definitive_threshold", 90)
	cfg, err := config.Load(v)
	require.NoError(t, err)
	assert.Equal(t, 90, cfg.YearRetrieval.DefinitiveThreshold)
}

func TestLoadReadsDevelopmentTestArtists(t *testing.T) {
	v := newViper()
	v.Set("development.test_artists", []string{"Boards of Canada"})
	cfg, err := config.Load(v)
	require.NoError(t, err)
	assert.Equal(t, []string{"Boards of Canada"}, cfg.Development.TestArtists)
}

package main

import (
	"testing"

	"github.com/bridgewise/backend/internal/config"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoalFrom(t *testing.T) {
	v := viper.New()
	assert.Nil(t, goalFrom(v))

	v.Set("rank-goal-skills", []string{"go, sql", " k8s "})
	v.Set("rank-goal-title", "Data Engineer")
	v.Set("rank-top-k", 5)
	v.Set("rank-write", true)

	goal := goalFrom(v)
	require.NotNil(t, goal)
	assert.Equal(t, []string{"go", "sql", "k8s"}, goal.QuerySkills)
	require.NotNil(t, goal.QueryTitle)
	assert.Equal(t, "Data Engineer", *goal.QueryTitle)
	assert.Equal(t, 5, goal.TopK)
	assert.True(t, goal.WriteBack)
	assert.Empty(t, goal.QueryText)
}

func TestApplyOverrides(t *testing.T) {
	t.Run("jobs json switches source", func(t *testing.T) {
		cmd := newRootCmd()
		require.NoError(t, cmd.Flags().Set("jobs-json", "people.json"))
		require.NoError(t, cmd.Flags().Set("job-edge-weight", "0.5"))
		v := viper.New()
		require.NoError(t, v.BindPFlags(cmd.Flags()))

		cfg := &config.Config{Contacts: config.ContactsConfig{Source: config.SourcePostgres}}
		require.NoError(t, applyOverrides(cmd, v, cfg))

		assert.Equal(t, config.SourceJSON, cfg.Contacts.Source)
		assert.Equal(t, "people.json", cfg.Contacts.JSONPath)
		assert.InDelta(t, 0.5, cfg.Builder.JobEdgeWeight, 1e-9)
		assert.Equal(t, 4, cfg.Builder.MinSharedSkills)
	})

	t.Run("explicit source wins", func(t *testing.T) {
		cmd := newRootCmd()
		require.NoError(t, cmd.Flags().Set("jobs-json", "people.json"))
		require.NoError(t, cmd.Flags().Set("source", "Neo4j"))
		v := viper.New()
		require.NoError(t, v.BindPFlags(cmd.Flags()))

		cfg := &config.Config{}
		require.NoError(t, applyOverrides(cmd, v, cfg))

		assert.Equal(t, config.SourceNeo4j, cfg.Contacts.Source)
		assert.Equal(t, "people.json", cfg.Contacts.JSONPath)
	})

	t.Run("graph flags", func(t *testing.T) {
		cmd := newRootCmd()
		require.NoError(t, cmd.Flags().Set("weight-mode", "jaccard"))
		require.NoError(t, cmd.Flags().Set("boost-company", "0"))
		require.NoError(t, cmd.Flags().Set("exclude", "x1,x2"))
		require.NoError(t, cmd.Flags().Set("max-iter", "8"))
		v := viper.New()
		require.NoError(t, v.BindPFlags(cmd.Flags()))

		cfg := &config.Config{Builder: config.BuilderConfig{SchoolBoost: 0.7, EmbedScale: 2}}
		require.NoError(t, applyOverrides(cmd, v, cfg))

		assert.Equal(t, "jaccard", string(cfg.Builder.WeightMode))
		assert.Zero(t, cfg.Builder.CompanyBoost)
		assert.InDelta(t, 0.7, cfg.Builder.SchoolBoost, 1e-9, "unset flags keep the configured value")
		assert.InDelta(t, 2.0, cfg.Builder.EmbedScale, 1e-9)
		assert.Equal(t, []string{"x1", "x2"}, cfg.Builder.ExcludeIDs)
		assert.Equal(t, 8, cfg.Community.MaxIterations)
	})

	t.Run("invalid graph flags", func(t *testing.T) {
		cmd := newRootCmd()
		require.NoError(t, cmd.Flags().Set("weight-mode", "cosine"))
		v := viper.New()
		require.NoError(t, v.BindPFlags(cmd.Flags()))

		cfg := &config.Config{}
		assert.ErrorIs(t, applyOverrides(cmd, v, cfg), config.ErrInvalidOverrides)
	})
}

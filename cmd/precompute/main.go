package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/bridgewise/backend/internal/bootstrap"
	"github.com/bridgewise/backend/internal/config"
	"github.com/bridgewise/backend/internal/queue"
	"github.com/bridgewise/backend/internal/timing"
	"github.com/bridgewise/backend/internal/util"
	"github.com/bridgewise/backend/pkg/logger"
	"github.com/bridgewise/backend/pkg/logger/console"
	"github.com/bridgewise/backend/pkg/precompute"
	"github.com/bridgewise/backend/pkg/rank"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	util.LoadEnv()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "precompute",
		Short: "Build the contact graph artifact and optionally rank a goal",
		Long: `precompute loads all contacts, embeds their descriptions, builds the
similarity graph, detects communities, computes structural metrics and
publishes the result as a new graph artifact.

With --rank-goal-text, --rank-goal-title or --rank-goal-skills the new
artifact is ranked against that goal afterwards.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, v)
		},
	}

	flags := cmd.Flags()
	flags.String("source", "", "contact source: postgres, neo4j or json")
	flags.String("jobs-json", "", "read contacts from this JSON file instead of the configured source")
	flags.String("title-synonyms-json", "", "JSON file with canonical title synonyms")
	flags.Float64("job-edge-weight", 1.0, "weight of job title edges")
	flags.Int("min-shared-skills", 4, "minimum shared skills for a similarity edge")
	flags.String("weight-mode", "", "skill edge weighting: count or jaccard")
	flags.Float64("boost-company", 1.0, "weight added for a shared company")
	flags.Float64("boost-school", 0.5, "weight added for a shared school")
	flags.StringSlice("exclude", nil, "person ids left out of the graph, comma separated")
	flags.Int("max-iter", 0, "maximum Louvain levels")
	flags.Int("embed-top-k", 0, "embedding neighbours per person, 0 disables the layer")
	flags.Float64("embed-scale", 1.0, "scale of embedding edges")
	flags.String("rank-goal-text", "", "free text goal ranked after the build")
	flags.StringSlice("rank-goal-skills", nil, "goal skills, comma separated")
	flags.String("rank-goal-title", "", "goal job title")
	flags.Int("rank-top-k", 10, "number of goal results to print")
	flags.Bool("rank-write", false, "persist every goal score")
	flags.Bool("debug", false, "enable debug logging")

	_ = v.BindPFlags(flags)
	_ = v.BindEnv("source", "CONTACT_SOURCE")
	_ = v.BindEnv("jobs-json", "JOBS_JSON_PATH")
	_ = v.BindEnv("title-synonyms-json", "TITLE_SYNONYMS_PATH", "TITLE_SYNONYMS_JSON")
	_ = v.BindEnv("job-edge-weight", "SIMILAR_JOB_EDGE_WEIGHT")
	_ = v.BindEnv("min-shared-skills", "SIMILAR_MIN_SHARED_SKILLS")
	_ = v.BindEnv("rank-goal-text", "RANK_GOAL_TEXT")
	_ = v.BindEnv("rank-goal-skills", "RANK_GOAL_SKILLS")
	_ = v.BindEnv("rank-goal-title", "RANK_GOAL_TITLE")
	_ = v.BindEnv("rank-top-k", "RANK_TOP_K")
	_ = v.BindEnv("rank-write", "RANK_WRITE")
	_ = v.BindEnv("debug", "DEBUG")

	return cmd
}

// applyOverrides copies flag and environment values resolved by v onto cfg.
// An explicit --jobs-json switches the contact source to json unless
// --source is given as well. Graph and clustering flags only apply when set
// and are checked like the run params of a queued recompute.
func applyOverrides(cmd *cobra.Command, v *viper.Viper, cfg *config.Config) error {
	if s := v.GetString("source"); s != "" {
		cfg.Contacts.Source = strings.ToLower(s)
	}
	if p := v.GetString("jobs-json"); p != "" {
		cfg.Contacts.JSONPath = p
		if cmd.Flags().Changed("jobs-json") && !cmd.Flags().Changed("source") {
			cfg.Contacts.Source = config.SourceJSON
		}
	}
	if p := v.GetString("title-synonyms-json"); p != "" {
		cfg.Builder.TitleSynonymsPath = p
	}
	cfg.Debug = v.GetBool("debug")

	jobEdge := v.GetFloat64("job-edge-weight")
	minShared := v.GetInt("min-shared-skills")
	o := config.Overrides{JobEdgeWeight: &jobEdge, MinSharedSkills: &minShared}
	if v.IsSet("weight-mode") {
		mode := v.GetString("weight-mode")
		o.WeightMode = &mode
	}
	if v.IsSet("boost-company") {
		boost := v.GetFloat64("boost-company")
		o.BoostCompany = &boost
	}
	if v.IsSet("boost-school") {
		boost := v.GetFloat64("boost-school")
		o.BoostSchool = &boost
	}
	for _, s := range v.GetStringSlice("exclude") {
		o.Exclude = append(o.Exclude, strings.Split(s, ",")...)
	}
	if v.IsSet("max-iter") {
		maxIter := v.GetInt("max-iter")
		o.MaxIter = &maxIter
	}
	if v.IsSet("embed-top-k") {
		topK := v.GetInt("embed-top-k")
		o.EmbedTopK = &topK
	}
	if v.IsSet("embed-scale") {
		scale := v.GetFloat64("embed-scale")
		o.EmbedScale = &scale
	}
	return cfg.ApplyOverrides(o)
}

// goalFrom returns the goal request, or nil when no goal was given.
func goalFrom(v *viper.Viper) *rank.GoalRequest {
	text := strings.TrimSpace(v.GetString("rank-goal-text"))
	title := strings.TrimSpace(v.GetString("rank-goal-title"))

	var skills []string
	for _, s := range v.GetStringSlice("rank-goal-skills") {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				skills = append(skills, part)
			}
		}
	}
	if text == "" && title == "" && len(skills) == 0 {
		return nil
	}

	req := &rank.GoalRequest{
		QueryText:   text,
		QuerySkills: skills,
		TopK:        v.GetInt("rank-top-k"),
		WriteBack:   v.GetBool("rank-write"),
	}
	if title != "" {
		req.QueryTitle = &title
	}
	return req
}

func run(cmd *cobra.Command, v *viper.Viper) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Read()
	overrideErr := applyOverrides(cmd, v, cfg)

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug:  cfg.Debug,
		Format: cfg.LogFormat,
	})
	logger.Init(consoleLogger)

	if err := errors.Join(overrideErr, cfg.Validate()); err != nil {
		logger.Error("Invalid configuration", "err", err)
		return err
	}

	goal := goalFrom(v)
	if goal != nil && goal.TopK <= 0 {
		return fmt.Errorf("--rank-top-k must be positive, got %d", goal.TopK)
	}

	res, err := bootstrap.Open(ctx, cfg)
	if err != nil {
		logger.Error("Failed to initialise resources", "err", err)
		return err
	}
	defer res.Close(context.Background())

	// Announce the artifact so running servers reload it.
	var publisher precompute.Publisher
	if url := cfg.Queue.URL(); url != "" {
		conn := queue.Init(url)
		defer conn.Close()
		ch, err := conn.Channel()
		if err != nil {
			return err
		}
		defer ch.Close()
		publisher = queue.NewArtifactPublisher(ch)
	}

	job, err := res.NewJob(publisher, func(p util.RunProgress) {
		logger.Info("Precompute progress", "step", p.Step, "detail", p.Detail, "percentage", p.Percentage)
	})
	if err != nil {
		return err
	}

	tracker := timing.NewTracker()
	out, err := job.Run(ctx, precompute.Params{Goal: goal})
	if err != nil {
		logger.Error("Precompute failed", "err", err)
		return err
	}

	logger.Info(
		"Precompute finished",
		"artifact", out.Metadata.ID,
		"nodes", out.Metadata.NodeCount,
		"edges", out.Metadata.EdgeCount,
		"clusters", out.Metadata.Clusters,
		"modularity", out.Metadata.Modularity,
		"embedded", out.Embedded,
		"duration", timing.Format(tracker.Total()),
	)
	if res.AIMetrics != nil {
		m := res.AIMetrics.GetMetrics()
		logger.Info("AI Metrics", "total_tokens", m.TotalTokens, "requests", m.Requests)
	}

	if out.Goal != nil {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out.Goal.Results)
	}
	return nil
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"docqa-retriever/internal/adapter/capability"
	"docqa-retriever/internal/adapter/pgindex"
	"docqa-retriever/internal/cache"
	"docqa-retriever/internal/domain"
	"docqa-retriever/internal/index"
	"docqa-retriever/internal/infra"
	"docqa-retriever/internal/infra/config"
	"docqa-retriever/internal/infra/httpclient"
	"docqa-retriever/internal/infra/logger"
	"docqa-retriever/internal/usecase"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "retrieverctl",
		Short:   "Hybrid retrieval pipeline for document Q&A",
		Version: version,
	}
	root.AddCommand(newPrepareCmd(), newRetrieveCmd(), newAnswerCmd(), newCacheCmd())
	return root
}

// Execute runs the CLI.
func Execute() error {
	return newRootCmd().Execute()
}

// app bundles the wired components shared by the commands.
type app struct {
	cfg       *config.Config
	log       *slog.Logger
	pipeline  *usecase.Pipeline
	store     *cache.Store
	generator domain.AnswerGenerator
	close     func()
}

func wire(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := logger.New()

	store, err := cache.NewStore(
		cfg.CacheDir,
		time.Duration(cfg.CacheTTLHours)*time.Hour,
		cfg.CacheMaxBytes,
		cfg.EmbedBatch,
		log,
	)
	if err != nil {
		return nil, err
	}

	modelClient := httpclient.NewPooledClient(60 * time.Second)
	encoder := capability.NewHTTPEmbedder(cfg.EmbedderURL, cfg.EmbeddingModel, modelClient)
	reranker := capability.NewRerankerClient(cfg.RerankerURL, cfg.RerankerModel, modelClient, log)
	loader := capability.NewTextLoader(httpclient.NewPooledClient(120*time.Second), 2)
	generator := capability.NewGeneratorClient(cfg.GeneratorURL, cfg.GeneratorModel, cfg.GeneratorKey,
		httpclient.NewPooledClient(120*time.Second))

	var builder domain.DenseIndexBuilder
	closeFn := func() {}
	switch cfg.IndexBackend {
	case "pgvector":
		pool, err := infra.NewPostgresDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		builder = pgindex.NewBuilder(pool)
		closeFn = pool.Close
	default:
		builder = index.NewFlatBuilder()
	}

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Loader:   loader,
		Encoder:  encoder,
		Reranker: reranker,
		Builder:  builder,
		Store:    store,
	}, usecase.Config{
		ChunkSize:              cfg.ChunkSize,
		ChunkOverlap:           cfg.ChunkOverlap,
		SmallDocTokenThreshold: cfg.SmallDocTokenThreshold,
		SemanticWeight:         cfg.SemanticWeight,
		KeywordWeight:          cfg.KeywordWeight,
		RerankTopN:             cfg.RerankTopN,
		RerankTopK:             cfg.RerankTopK,
		RerankTimeout:          time.Duration(cfg.RerankTimeoutSeconds) * time.Second,
		MaxConcurrentQuestions: cfg.MaxConcurrentQuestions,
		BatchTimeout:           time.Duration(cfg.BatchTimeoutSeconds) * time.Second,
		ModelConcurrency:       int64(cfg.ModelConcurrency),
		VisionConcurrency:      int64(cfg.VisionConcurrency),
	}, log)

	return &app{
		cfg:       cfg,
		log:       log,
		pipeline:  pipeline,
		store:     store,
		generator: generator,
		close:     closeFn,
	}, nil
}

func newPrepareCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prepare <source>",
		Short: "Ingest a document and print its retrieval plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := wire(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			plan, err := a.pipeline.Prepare.Execute(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(plan)
		},
	}
}

func newRetrieveCmd() *cobra.Command {
	var questions []string
	cmd := &cobra.Command{
		Use:   "retrieve <source>",
		Short: "Retrieve ranked context for a batch of questions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(questions) == 0 {
				return fmt.Errorf("at least one --question is required")
			}
			a, err := wire(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			results, err := a.pipeline.Retrieve.Execute(cmd.Context(), args[0], questions)
			if err != nil {
				return err
			}
			return printJSON(renderResults(results))
		},
	}
	cmd.Flags().StringArrayVarP(&questions, "question", "q", nil, "question to answer (repeatable)")
	return cmd
}

func newAnswerCmd() *cobra.Command {
	var questions []string
	cmd := &cobra.Command{
		Use:   "answer <source>",
		Short: "Retrieve context and synthesize answers with the generation capability",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(questions) == 0 {
				return fmt.Errorf("at least one --question is required")
			}
			a, err := wire(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			results, err := a.pipeline.Retrieve.Execute(cmd.Context(), args[0], questions)
			if err != nil {
				return err
			}

			answers := make([]map[string]string, len(results))
			for i, res := range results {
				if res.Err != nil {
					answers[i] = map[string]string{"question": res.Question, "error": res.Err.Error()}
					continue
				}
				answer, err := a.generator.Generate(cmd.Context(), res.Question, renderContext(res))
				if err != nil {
					answers[i] = map[string]string{"question": res.Question, "error": err.Error()}
					continue
				}
				answers[i] = map[string]string{"question": res.Question, "answer": answer}
			}
			return printJSON(answers)
		},
	}
	cmd.Flags().StringArrayVarP(&questions, "question", "q", nil, "question to answer (repeatable)")
	return cmd
}

func newCacheCmd() *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the embedding cache",
	}
	cacheCmd.AddCommand(&cobra.Command{
		Use:   "purge",
		Short: "Remove expired cache entries and enforce the size bound",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := wire(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()
			return a.store.Purge()
		},
	})
	return cacheCmd
}

// renderContext joins the retrieved spans (or the whole document in
// full-text mode) into the context string the generator consumes.
func renderContext(res domain.RetrievalResult) string {
	if res.Strategy == domain.StrategyFullText {
		return res.FullText
	}
	var out string
	for i, c := range res.Contexts {
		if i > 0 {
			out += "\n\n"
		}
		out += c.Text
	}
	return out
}

type renderedResult struct {
	Question       string                  `json:"question"`
	Strategy       domain.Strategy         `json:"strategy,omitempty"`
	Contexts       []domain.RetrievedChunk `json:"contexts,omitempty"`
	FullText       bool                    `json:"full_text,omitempty"`
	RerankFallback bool                    `json:"rerank_fallback,omitempty"`
	Error          string                  `json:"error,omitempty"`
}

func renderResults(results []domain.RetrievalResult) []renderedResult {
	out := make([]renderedResult, len(results))
	for i, res := range results {
		out[i] = renderedResult{
			Question:       res.Question,
			Strategy:       res.Strategy,
			Contexts:       res.Contexts,
			FullText:       res.Strategy == domain.StrategyFullText,
			RerankFallback: res.RerankFallback,
		}
		if res.Err != nil {
			out[i].Error = res.Err.Error()
		}
	}
	return out
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

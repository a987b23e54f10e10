package main

import (
	"fmt"

	"github.com/lecternhq/lectern/internal/config"
	"github.com/lecternhq/lectern/internal/ingest"
	"github.com/lecternhq/lectern/internal/model"
	anthropicprovider "github.com/lecternhq/lectern/internal/model/providers/anthropic"
	geminiprovider "github.com/lecternhq/lectern/internal/model/providers/gemini"
	openaiprovider "github.com/lecternhq/lectern/internal/model/providers/openai"
	"github.com/lecternhq/lectern/internal/orchestrator"
	"github.com/lecternhq/lectern/internal/orchestrator/session"
	"github.com/lecternhq/lectern/internal/retriever"
	"github.com/lecternhq/lectern/internal/store"
	"github.com/lecternhq/lectern/internal/tool"
)

// Runtime wires the store worker, model router, retrieval backend, tools,
// and kernel. Commands build it once and pick what they need.
type Runtime struct {
	Store    *store.Worker
	Router   *model.DefaultModelRouter
	Backend  *retriever.Backend
	Registry *tool.Registry
	Kernel   *orchestrator.Kernel
	Ingestor *ingest.Ingestor
}

func buildRuntime(cfg *config.Config) (*Runtime, error) {
	lockTimeout, err := config.DurationOrDefault(cfg.Store.LockTimeout, config.DefaultStoreLockTimeout)
	if err != nil {
		return nil, err
	}
	lockRetry, err := config.DurationOrDefault(cfg.Store.LockRetry, config.DefaultStoreLockRetry)
	if err != nil {
		return nil, err
	}

	worker, err := store.NewWorker(cfg.Store.DataPath, store.RuntimeConfig{
		LockTimeout:  lockTimeout,
		LockRetry:    lockRetry,
		LockMaxRetry: cfg.Store.LockMaxRetry,
		InboxSize:    cfg.Store.InboxSize,
	})
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	worker.Start()

	router, err := buildRouter(cfg)
	if err != nil {
		worker.Stop()
		return nil, err
	}

	backend := retriever.NewBackend(worker, router, retriever.Options{
		EmbeddingModel:   cfg.Models.Embedding,
		MaxResults:       cfg.Retrieval.MaxResults,
		ResolveThreshold: cfg.Retrieval.ResolveThreshold,
	})

	registry := tool.NewRegistry()
	if err := registry.Register(tool.NewSearchTool(backend)); err != nil {
		worker.Stop()
		return nil, err
	}
	if err := registry.Register(tool.NewOutlineTool(backend)); err != nil {
		worker.Stop()
		return nil, err
	}

	loop := orchestrator.NewLoop(router, registry, orchestrator.LoopConfig{
		Model:     cfg.Models.Default,
		System:    cfg.Prompts.Assistant.System,
		MaxRounds: cfg.Orchestrator.MaxRounds,
		MaxTokens: cfg.Models.MaxTokens,
	})

	sessions := session.NewManager(worker)
	kernel := orchestrator.NewKernel(loop, sessions, cfg.Orchestrator.SessionHistoryLimit)

	chunker := ingest.NewChunker(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
	ingestor := ingest.NewIngestor(worker, router, chunker, cfg.Models.Embedding)

	return &Runtime{
		Store:    worker,
		Router:   router,
		Backend:  backend,
		Registry: registry,
		Kernel:   kernel,
		Ingestor: ingestor,
	}, nil
}

func buildRouter(cfg *config.Config) (*model.DefaultModelRouter, error) {
	router := model.NewRouter(cfg.Models.Default)
	if cfg.Models.Fallback != "" {
		router.SetFallback(cfg.Models.Fallback, cfg.Models.MaxFallbackAttempts)
	}

	keys := map[string]string{}
	baseURLs := map[string]string{}
	for _, entry := range cfg.Models.Registry {
		if keys[entry.Provider] == "" {
			keys[entry.Provider] = entry.APIKey
		}
		if baseURLs[entry.Provider] == "" {
			baseURLs[entry.Provider] = entry.BaseURL
		}
	}

	router.RegisterProvider(anthropicprovider.New(keys["anthropic"]))
	router.RegisterProvider(openaiprovider.New(keys["openai"], baseURLs["openai"], cfg.Models.Embedding))

	if keys["gemini"] != "" {
		gp, err := geminiprovider.New(keys["gemini"])
		if err != nil {
			return nil, fmt.Errorf("init gemini provider: %w", err)
		}
		router.RegisterProvider(gp)
	}

	return router, nil
}

func (r *Runtime) Close() {
	r.Store.Stop()
}

// Command docchat indexes a folder of PDF documents and answers
// questions about their contents with cited passages.
package main

import (
	"fmt"
	"os"

	configfile "github.com/docchat-cli/docchat/internal/adapters/driven/config/file"
	embeddingopenai "github.com/docchat-cli/docchat/internal/adapters/driven/embedding/openai"
	llmopenai "github.com/docchat-cli/docchat/internal/adapters/driven/llm/openai"
	"github.com/docchat-cli/docchat/internal/adapters/driven/store/memory"
	"github.com/docchat-cli/docchat/internal/adapters/driven/store/sqlite"
	"github.com/docchat-cli/docchat/internal/adapters/driving/cli"
	"github.com/docchat-cli/docchat/internal/core/ports/driven"
	"github.com/docchat-cli/docchat/internal/core/services"
	"github.com/docchat-cli/docchat/internal/extract/pdftext"
	"github.com/docchat-cli/docchat/internal/logger"
)

// defaultAPIKeyEnv is consulted when openai.api_key_env is not configured.
const defaultAPIKeyEnv = "OPENAI_API_KEY"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := configfile.NewConfigStore("")
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	embedder, llmKey := buildEmbedder(cfg)

	docStore, chunkStore, cleanup, err := buildStores(cfg, embedder)
	if err != nil {
		return err
	}
	defer cleanup()

	extractor := pdftext.New()
	if err := pdftext.CheckAvailable(); err != nil {
		logger.Warn("%v", err)
	}

	var ingestOpts []services.IngestOption
	if words := cfg.GetInt(driven.ConfigKeyChunkWords); words > 0 {
		ingestOpts = append(ingestOpts, services.WithChunkWords(words))
	}
	if ext := cfg.GetString(driven.ConfigKeySourceExtension); ext != "" {
		ingestOpts = append(ingestOpts, services.WithExtension(ext))
	}

	ingestor := services.NewIngestOrchestrator(docStore, chunkStore, extractor, ingestOpts...)
	retriever := services.NewRetrievalService(chunkStore)

	serviceSet := cli.Services{
		Ingestor:  ingestor,
		Retriever: retriever,
		Config:    cfg,
	}

	if llmKey != "" {
		llm, err := llmopenai.NewLLMService(llmopenai.LLMConfig{
			APIKey:  llmKey,
			BaseURL: cfg.GetString(driven.ConfigKeyOpenAIBaseURL),
			Model:   cfg.GetString(driven.ConfigKeyChatModel),
		})
		if err != nil {
			return fmt.Errorf("configuring chat model: %w", err)
		}
		var chatOpts []services.ChatOption
		if limit := cfg.GetInt(driven.ConfigKeySearchLimit); limit > 0 {
			chatOpts = append(chatOpts, services.WithSearchLimit(limit))
		}
		chat, err := services.NewChatService(llm, retriever, chatOpts...)
		if err != nil {
			return fmt.Errorf("configuring chat service: %w", err)
		}
		serviceSet.Chat = chat
	}

	cli.Configure(serviceSet)
	return cli.Execute()
}

// buildEmbedder creates the embedding service when an API key is
// available. Without one, ingestion still runs but stores no vectors
// and search reports that embeddings are unavailable.
func buildEmbedder(cfg driven.ConfigStore) (driven.EmbeddingService, string) {
	keyEnv := cfg.GetString(driven.ConfigKeyOpenAIKeyEnv)
	if keyEnv == "" {
		keyEnv = defaultAPIKeyEnv
	}
	apiKey := os.Getenv(keyEnv)
	if apiKey == "" {
		logger.Warn("no API key in $%s; search and chat are disabled", keyEnv)
		return nil, ""
	}

	embedder, err := embeddingopenai.NewEmbeddingService(embeddingopenai.Config{
		APIKey:            apiKey,
		BaseURL:           cfg.GetString(driven.ConfigKeyOpenAIBaseURL),
		Model:             cfg.GetString(driven.ConfigKeyEmbeddingModel),
		RequestsPerSecond: cfg.GetFloat(driven.ConfigKeyEmbeddingRPS),
	})
	if err != nil {
		logger.Warn("embedding service unavailable: %v", err)
		return nil, apiKey
	}
	logger.Debug("embedding model: %s", embedder.ModelName())
	return embedder, apiKey
}

// buildStores selects the record store backend from configuration.
// SQLite is the default; "memory" keeps everything in process for
// experimentation.
func buildStores(
	cfg driven.ConfigStore,
	embedder driven.EmbeddingService,
) (driven.DocumentStore, driven.ChunkStore, func(), error) {
	switch storeType := cfg.GetString(driven.ConfigKeyStoreType); storeType {
	case "memory":
		return memory.NewDocumentStore(), memory.NewChunkStore(embedder), func() {}, nil
	case "", "sqlite":
		store, err := sqlite.NewStore(cfg.GetString(driven.ConfigKeyDataDir))
		if err != nil {
			return nil, nil, nil, fmt.Errorf("opening store: %w", err)
		}
		cleanup := func() {
			if err := store.Close(); err != nil {
				logger.Warn("closing store: %v", err)
			}
		}
		return store.DocumentStore(), store.ChunkStore(embedder), cleanup, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown store type %q", storeType)
	}
}

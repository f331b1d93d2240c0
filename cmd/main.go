package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"

	"github.com/ferraz/docqa/internal/models"
	"github.com/ferraz/docqa/internal/types"
	"github.com/ferraz/docqa/pkg/chunker"
	cfgPkg "github.com/ferraz/docqa/pkg/config"
	"github.com/ferraz/docqa/pkg/extract"
	"github.com/ferraz/docqa/pkg/ingest"
	"github.com/ferraz/docqa/pkg/llm"
	"github.com/ferraz/docqa/pkg/logging"
	"github.com/ferraz/docqa/pkg/ocr"
	"github.com/ferraz/docqa/pkg/retriever"
	"github.com/ferraz/docqa/pkg/scraper"
	"github.com/ferraz/docqa/pkg/store"
)

type cliFlags struct {
	ConfigPath string
	SessionID  string
	ScrapeURL  string
	IngestPath string
	ListDocs   bool
}

func main() {
	flags := parseFlags()

	config, err := cfgPkg.LoadConfig(flags.ConfigPath)
	if err != nil {
		color.Red("Failed to load configuration: %v", err)
		os.Exit(1)
	}
	if errs := config.Validate(); len(errs) > 0 {
		for _, e := range errs {
			color.Red("Invalid configuration: %s", e.Error())
		}
		os.Exit(1)
	}

	log, err := logging.New(config.Log.Mode)
	if err != nil {
		color.Red("Failed to initialize logger: %v", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(flags, config, log); err != nil {
		log.Error("fatal", "error", err)
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func parseFlags() cliFlags {
	var flags cliFlags

	flag.StringVar(&flags.ConfigPath, "config", "", "Path to config file")
	flag.StringVar(&flags.SessionID, "session", "default", "Chat session id")
	flag.StringVar(&flags.ScrapeURL, "scrape", "", "URL to scrape and ingest at startup")
	flag.StringVar(&flags.IngestPath, "ingest", "", "File to ingest at startup")
	flag.BoolVar(&flags.ListDocs, "list", false, "List stored documents and exit")
	flag.Parse()

	return flags
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("chunks"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func run(flags cliFlags, config *cfgPkg.Config, log *logging.Logger) error {
	ctx := context.Background()

	vectorStore, err := store.NewWithConfig(ctx, store.StoreConfig{
		ConnString: config.Database.URL,
		VectorDim:  config.Embedding.Dimension,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize vector store: %w", err)
	}
	defer vectorStore.Close()

	if flags.ListDocs {
		return listDocuments(ctx, vectorStore)
	}

	embedder, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Model:      config.Embedding.Model,
		BaseURL:    config.LLM.BaseURL,
		Dimension:  config.Embedding.Dimension,
		BatchSize:  config.Embedding.BatchSize,
		MaxRetries: config.Embedding.MaxRetries,
		Timeout:    time.Duration(config.Embedding.TimeoutSecs) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize embedder: %w", err)
	}

	generator, err := llm.NewGeneratorWithConfig(llm.GeneratorConfig{
		Model:       config.LLM.Model,
		BaseURL:     config.LLM.BaseURL,
		MaxTokens:   config.LLM.MaxTokens,
		Temperature: config.LLM.Temperature,
		Timeout:     time.Duration(config.LLM.TimeoutSecs) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize generator: %w", err)
	}

	var ocrClient types.OCRClient
	if config.OCR.URL != "" {
		ocrClient, err = ocr.NewWithConfig(ocr.ClientConfig{
			BaseURL: config.OCR.URL,
			Timeout: time.Duration(config.OCR.TimeoutSecs) * time.Second,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize OCR client: %w", err)
		}
	}

	pipeline := ingest.New(
		extract.New(ocrClient),
		chunker.NewWithConfig(chunker.ChunkerConfig{
			ChunkSize: config.Processor.ChunkSize,
			Overlap:   config.Processor.ChunkOverlap,
		}),
		embedder,
		vectorStore,
		scraper.NewWithConfig(scraper.ScraperConfig{
			RateLimit: config.Scraper.RateLimit,
			Timeout:   time.Duration(config.Scraper.TimeoutSecs) * time.Second,
		}),
		log,
	)

	contextRetriever := retriever.NewWithConfig(retriever.RetrieverConfig{
		TopK:            config.Retrieval.TopK,
		MaxContextChars: config.Retrieval.MaxContextChars,
		MinSimilarity:   float32(config.Retrieval.MinSimilarity),
	}, embedder, vectorStore)

	// Startup ingestion: a configured scrape URL, the -scrape flag, or
	// the -ingest flag.
	scrapeURL := config.Scraper.URL
	if flags.ScrapeURL != "" {
		scrapeURL = flags.ScrapeURL
	}
	if scrapeURL != "" {
		if err := scrapeAndIngest(ctx, pipeline, scrapeURL); err != nil {
			return err
		}
	}
	if flags.IngestPath != "" {
		if err := ingestFile(ctx, pipeline, flags.IngestPath); err != nil {
			return err
		}
	}

	return chatLoop(ctx, flags.SessionID, contextRetriever, generator, vectorStore, pipeline)
}

func listDocuments(ctx context.Context, vectorStore *store.Store) error {
	docs, err := vectorStore.ListDocuments(ctx)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		color.Yellow("No documents stored")
		return nil
	}
	for _, doc := range docs {
		fmt.Printf("%s  %-40s  %4d chunks  %s\n",
			doc.ID, doc.Source, doc.ChunkCount, doc.CreatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func scrapeAndIngest(ctx context.Context, pipeline *ingest.Pipeline, url string) error {
	spinner := getSpinner(fmt.Sprintf("Scraping %s...", url))
	id, count, err := pipeline.IngestFromURL(ctx, url)
	spinner.Finish()
	fmt.Print("\r")
	if err != nil {
		return fmt.Errorf("failed to ingest %s: %w", url, err)
	}
	color.Green("✓ Ingested %s (%s, %d chunks)", url, id, count)
	return nil
}

func ingestFile(ctx context.Context, pipeline *ingest.Pipeline, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	format := strings.TrimPrefix(filepath.Ext(path), ".")
	source := "upload:" + filepath.Base(path)

	bar := getProgressBar(-1, fmt.Sprintf("Ingesting %s...", filepath.Base(path)))
	id, count, err := pipeline.Ingest(ctx, raw, format, source)
	bar.Finish()
	fmt.Print("\r")
	if err != nil {
		return fmt.Errorf("failed to ingest %s: %w", path, err)
	}
	color.Green("✓ Ingested %s (%s, %d chunks)", path, id, count)
	return nil
}

const historyWindow = 10

func chatLoop(
	ctx context.Context,
	sessionID string,
	contextRetriever *retriever.Retriever,
	generator types.Generator,
	vectorStore *store.Store,
	pipeline *ingest.Pipeline,
) error {
	memory := vectorStore.Memory()

	color.Cyan("\nChat with your documents (type 'exit' to quit)")
	color.Cyan("Commands: /ingest <file>, /scrape <url>, /docs, /delete <id>, /sessions")

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	userPrompt := color.New(color.FgGreen).PrintfFunc()
	assistantPrompt := color.New(color.FgCyan).PrintfFunc()

	for {
		userPrompt("\nYou: ")
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		switch {
		case input == "":
			continue
		case strings.EqualFold(input, "exit"), strings.EqualFold(input, "quit"):
			return nil
		case strings.HasPrefix(input, "/"):
			if err := handleCommand(ctx, input, pipeline, vectorStore); err != nil {
				color.Red("Error: %v", err)
			}
			continue
		}

		answer, err := answerQuestion(ctx, sessionID, input, contextRetriever, generator, memory)
		if err != nil {
			color.Red("Error: %v", err)
			continue
		}
		assistantPrompt("Assistant: %s\n", answer)
	}

	return scanner.Err()
}

func handleCommand(ctx context.Context, input string, pipeline *ingest.Pipeline, vectorStore *store.Store) error {
	cmd, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/ingest":
		if arg == "" {
			return fmt.Errorf("usage: /ingest <file>")
		}
		return ingestFile(ctx, pipeline, arg)
	case "/scrape":
		if arg == "" {
			return fmt.Errorf("usage: /scrape <url>")
		}
		return scrapeAndIngest(ctx, pipeline, arg)
	case "/docs":
		return listDocuments(ctx, vectorStore)
	case "/delete":
		id, err := uuid.Parse(arg)
		if err != nil {
			return fmt.Errorf("usage: /delete <document id>")
		}
		if err := vectorStore.DeleteDocument(ctx, id); err != nil {
			return err
		}
		color.Green("✓ Deleted %s", id)
		return nil
	case "/sessions":
		sessions, err := vectorStore.Memory().ListSessions(ctx)
		if err != nil {
			return err
		}
		for _, s := range sessions {
			fmt.Printf("session %-20s  %d turns\n", s.SessionID, s.TurnCount)
		}
		return nil
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func answerQuestion(
	ctx context.Context,
	sessionID, question string,
	contextRetriever *retriever.Retriever,
	generator types.Generator,
	memory types.SessionMemory,
) (string, error) {
	// History is read before this turn is appended so the question is
	// not duplicated in the prompt.
	history, err := memory.ReadHistory(ctx, sessionID, historyWindow)
	if err != nil {
		return "", fmt.Errorf("failed to read history: %w", err)
	}

	spinner := getSpinner("Searching documents...")
	retrieved, err := contextRetriever.Retrieve(ctx, question)
	spinner.Finish()
	fmt.Print("\r")
	if err != nil {
		return "", err
	}

	spinner = getSpinner("Generating response...")
	answer, err := generator.Generate(ctx, retrieved.Text, history, question)
	spinner.Finish()
	fmt.Print("\r")
	if err != nil {
		return "", err
	}

	if _, err := memory.AppendTurn(ctx, sessionID, models.RoleUser, question); err != nil {
		return "", fmt.Errorf("failed to persist turn: %w", err)
	}
	if _, err := memory.AppendTurn(ctx, sessionID, models.RoleAssistant, answer); err != nil {
		return "", fmt.Errorf("failed to persist turn: %w", err)
	}

	return answer, nil
}

package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ferraz/docqa/internal/models"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

// ErrGenerationFailed marks failures of the generation service. It is
// distinct from an empty retrieval context, which is not an error.
var ErrGenerationFailed = errors.New("generation failed")

type GeneratorConfig struct {
	Model        string
	BaseURL      string // Ollama server URL
	MaxTokens    int
	Temperature  float64
	SystemPrompt string
	Timeout      time.Duration
}

// Generator is the client for the external generation service. It
// receives the assembled context, the session history, and the
// question, and returns the answer text.
type Generator struct {
	config GeneratorConfig
	llm    llms.Model
}

func NewGeneratorWithConfig(config GeneratorConfig) (*Generator, error) {
	if config.Model == "" {
		config.Model = "llama3"
	}
	if config.Temperature < 0 || config.Temperature > 2 {
		return nil, fmt.Errorf("temperature must be between 0 and 2")
	}
	if config.Temperature == 0 {
		config.Temperature = 0.7
	}
	if config.MaxTokens < 0 {
		return nil, fmt.Errorf("max tokens cannot be negative")
	} else if config.MaxTokens == 0 {
		config.MaxTokens = 2000
	}
	if config.SystemPrompt == "" {
		config.SystemPrompt = "You are a helpful assistant that answers questions based on the provided documents. " +
			"Use the conversation history to keep context between messages. " +
			"When document context is provided, ground your answer in it. " +
			"If the documents do not contain the answer, say so honestly."
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}
	if config.Timeout == 0 {
		config.Timeout = 120 * time.Second
	}

	model, err := ollama.New(
		ollama.WithModel(config.Model),
		ollama.WithServerURL(config.BaseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}

	return &Generator{
		config: config,
		llm:    model,
	}, nil
}

// Generate produces an answer. An empty contextText is valid and means
// the question is answered from history and model knowledge alone.
func (g *Generator) Generate(ctx context.Context, contextText string, history []models.ChatTurn, question string) (string, error) {
	content := buildMessages(g.config.SystemPrompt, contextText, history, question)

	callCtx, cancel := context.WithTimeout(ctx, g.config.Timeout)
	defer cancel()

	response, err := g.llm.GenerateContent(callCtx, content,
		llms.WithMaxTokens(g.config.MaxTokens),
		llms.WithTemperature(g.config.Temperature),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	if response == nil || len(response.Choices) == 0 {
		return "", fmt.Errorf("%w: empty response", ErrGenerationFailed)
	}

	return response.Choices[0].Content, nil
}

func buildMessages(systemPrompt, contextText string, history []models.ChatTurn, question string) []llms.MessageContent {
	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
	}

	for _, turn := range history {
		role := llms.ChatMessageTypeHuman
		if turn.Role == models.RoleAssistant {
			role = llms.ChatMessageTypeAI
		}
		content = append(content, llms.TextParts(role, turn.Content))
	}

	userInput := question
	if contextText != "" {
		userInput = fmt.Sprintf("Context from documents:\n%s\n\nQuestion: %s", contextText, question)
	}
	content = append(content, llms.TextParts(llms.ChatMessageTypeHuman, userInput))

	return content
}

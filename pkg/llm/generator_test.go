package llm

import (
	"testing"

	"github.com/ferraz/docqa/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

func TestNewGeneratorValidation(t *testing.T) {
	_, err := NewGeneratorWithConfig(GeneratorConfig{Temperature: 3.0})
	assert.Error(t, err)

	_, err = NewGeneratorWithConfig(GeneratorConfig{Temperature: 0.7, MaxTokens: -1})
	assert.Error(t, err)

	_, err = NewGeneratorWithConfig(GeneratorConfig{Temperature: -0.1})
	assert.Error(t, err)

	g, err := NewGeneratorWithConfig(GeneratorConfig{Temperature: 0.7})
	require.NoError(t, err)
	assert.NotNil(t, g)
}

func TestNewGeneratorDefaultsTemperature(t *testing.T) {
	g, err := NewGeneratorWithConfig(GeneratorConfig{})

	require.NoError(t, err)
	assert.Equal(t, 0.7, g.config.Temperature)
	assert.Equal(t, "llama3", g.config.Model)
	assert.Equal(t, 2000, g.config.MaxTokens)
}

func TestBuildMessagesWithContextAndHistory(t *testing.T) {
	history := []models.ChatTurn{
		{Role: models.RoleUser, Content: "hi"},
		{Role: models.RoleAssistant, Content: "hello"},
	}

	content := buildMessages("system prompt", "some context", history, "what now?")

	require.Len(t, content, 4)
	assert.Equal(t, llms.ChatMessageTypeSystem, content[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, content[1].Role)
	assert.Equal(t, llms.ChatMessageTypeAI, content[2].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, content[3].Role)

	last := content[3].Parts[0].(llms.TextContent).Text
	assert.Contains(t, last, "some context")
	assert.Contains(t, last, "what now?")
}

func TestBuildMessagesWithoutContext(t *testing.T) {
	content := buildMessages("system prompt", "", nil, "plain question")

	require.Len(t, content, 2)
	last := content[1].Parts[0].(llms.TextContent).Text
	assert.Equal(t, "plain question", last)
}

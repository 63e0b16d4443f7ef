package model

// ================ Config ================

// MainModelConfig configures the tool-calling agent model.
type MainModelConfig struct {
	Model       string  `envconfig:"MAIN_MODEL" default:"gpt-4o"`
	MaxTokens   int     `envconfig:"MAIN_MAX_TOKENS" default:"4096"`
	Temperature float32 `envconfig:"MAIN_TEMPERATURE" default:"0.1"`
}

// TranslatorModelConfig configures the translation / direct-answer model.
// The workflow classifier shares this model.
type TranslatorModelConfig struct {
	Model       string  `envconfig:"TRANSLATOR_MODEL" default:"gpt-4o-mini"`
	MaxTokens   int     `envconfig:"TRANSLATOR_MAX_TOKENS" default:"4096"`
	Temperature float32 `envconfig:"TRANSLATOR_TEMPERATURE" default:"0"`
}

// ConversationConfig bounds the multi-turn memory used for prompt construction.
type ConversationConfig struct {
	// MemoryTurns is how many past turns (one user + one assistant message
	// each) are replayed into the prompt. Tool-trace entries are not counted.
	MemoryTurns int `envconfig:"CONVERSATION_MEMORY_TURNS" default:"8"`
	// ContextTurns bounds the short textual summary fed to translation.
	ContextTurns int `envconfig:"CONVERSATION_CONTEXT_TURNS" default:"3"`
	TTL          string `envconfig:"CONVERSATION_TTL" default:"0"`
}

// TurnConfig bounds a single turn of graph execution.
type TurnConfig struct {
	TimeoutSeconds  int `envconfig:"TURN_TIMEOUT_SECONDS" default:"120"`
	RecursionLimit  int `envconfig:"TURN_RECURSION_LIMIT" default:"100"`
	ClassifyTimeout int `envconfig:"CLASSIFY_TIMEOUT_SECONDS" default:"15"`
}

const (
	minTurnTimeout = 60
	maxTurnTimeout = 300
	minRecursion   = 10
	maxRecursion   = 200
)

// Normalize clamps the turn knobs into their supported ranges.
func (c *TurnConfig) Normalize() {
	c.TimeoutSeconds = clamp(c.TimeoutSeconds, minTurnTimeout, maxTurnTimeout)
	c.RecursionLimit = clamp(c.RecursionLimit, minRecursion, maxRecursion)
	if c.ClassifyTimeout <= 0 {
		c.ClassifyTimeout = 15
	}
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

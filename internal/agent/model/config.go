package model

// ================ Config ================
type ConversationConfig struct {
	Store string `envconfig:"CONVERSATION_STORE" default:"memory"`
	TTL   string `envconfig:"CONVERSATION_TTL" default:"24h"`
}

type AnalyzerModelConfig struct {
	Model       string  `envconfig:"ANALYZER_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"ANALYZER_MAX_TOKENS" default:"2000"`
	Temperature float32 `envconfig:"ANALYZER_TEMPERATURE" default:"0.1"`
}

type SQLModelConfig struct {
	Model       string  `envconfig:"SQL_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"SQL_MAX_TOKENS" default:"4000"`
	Temperature float32 `envconfig:"SQL_TEMPERATURE" default:"0.1"`
}

type AgentConfig struct {
	TopK              int    `envconfig:"AGENT_TOP_K" default:"5"`
	MaxQueryRounds    int    `envconfig:"AGENT_MAX_QUERY_ROUNDS" default:"10"`
	MaxClarifications int    `envconfig:"AGENT_MAX_CLARIFICATIONS" default:"3"`
	WriteToken        string `envconfig:"AGENT_WRITE_TOKEN" default:"ChickenB"`
	CurrencyType      string `envconfig:"CURRENCY_TYPE" default:"naira"`
}

type StorageConfig struct {
	DatabasePath string `envconfig:"DATABASE_PATH" default:"inventory.db"`
}

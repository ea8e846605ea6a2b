package config

import "time"

// LLMConfig represents the configuration for the fallback classifier provider
type LLMConfig struct {
	Provider string
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// OpenAIConfig represents the configuration for OpenAI
type OpenAIConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// IntakeConfig represents the configuration for the notification intake
type IntakeConfig struct {
	Type            string
	ListenAddress   string
	Domain          string
	DefaultUserID   string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	MaxMessageBytes int
}

// ClassifierConfig represents the classifier behavior configuration
type ClassifierConfig struct {
	MutedSenders []string
}

// StoreConfig represents the configuration for pattern and alert storage
type StoreConfig struct {
	Type       string
	SQLitePath string
	MySQLDSN   string
}

// GetLLM returns the LLM configuration
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		Provider: c.GetString("llm.provider"),
	}
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:      c.GetString("bedrock.region"),
		ModelID:     c.GetString("bedrock.model_id"),
		MaxTokens:   c.GetInt("bedrock.max_tokens"),
		Temperature: float32(c.GetFloat64("bedrock.temperature")),
		TopP:        float32(c.GetFloat64("bedrock.top_p")),
		MaxBodySize: c.GetInt("bedrock.max_body_size"),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:      c.GetString("gemini.api_key"),
		ModelName:   c.GetString("gemini.model_name"),
		MaxTokens:   c.GetInt("gemini.max_tokens"),
		Temperature: float32(c.GetFloat64("gemini.temperature")),
		TopP:        float32(c.GetFloat64("gemini.top_p")),
		MaxBodySize: c.GetInt("gemini.max_body_size"),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:      c.GetString("openai.api_key"),
		ModelName:   c.GetString("openai.model_name"),
		MaxTokens:   c.GetInt("openai.max_tokens"),
		Temperature: float32(c.GetFloat64("openai.temperature")),
		TopP:        float32(c.GetFloat64("openai.top_p")),
		MaxBodySize: c.GetInt("openai.max_body_size"),
	}
}

// GetIntake returns the intake configuration
func (c *Config) GetIntake() IntakeConfig {
	readTimeout, err := c.GetDuration("intake.read_timeout")
	if err != nil {
		readTimeout = 30 * time.Second
	}
	writeTimeout, err := c.GetDuration("intake.write_timeout")
	if err != nil {
		writeTimeout = 30 * time.Second
	}

	return IntakeConfig{
		Type:            c.GetString("intake.type"),
		ListenAddress:   c.GetString("intake.listen_address"),
		Domain:          c.GetString("intake.domain"),
		DefaultUserID:   c.GetString("intake.default_user_id"),
		ReadTimeout:     readTimeout,
		WriteTimeout:    writeTimeout,
		MaxMessageBytes: c.GetInt("intake.max_message_bytes"),
	}
}

// GetClassifier returns the classifier configuration
func (c *Config) GetClassifier() ClassifierConfig {
	return ClassifierConfig{
		MutedSenders: c.GetStringSlice("classifier.muted_senders"),
	}
}

// GetStore returns the store configuration
func (c *Config) GetStore() StoreConfig {
	return StoreConfig{
		Type:       c.GetString("store.type"),
		SQLitePath: c.GetString("store.sqlite_path"),
		MySQLDSN:   c.GetString("store.mysql_dsn"),
	}
}

// Package llm provides the deliverable generator: the model client that turns
// a prompt and source materials into a deliverable JSON payload.
package llm

// Provider represents an LLM provider
type Provider string

// Provider constants define supported LLM providers
const (
	// ProviderGemini is the Google Gemini provider
	ProviderGemini Provider = "gemini"
	// ProviderStatic replays a fixed payload instead of calling a model
	ProviderStatic Provider = "static"
)

// Config holds the generator configuration
type Config struct {
	Provider Provider `json:"provider"`
	Model    string   `json:"model"`
	// Temperature is kept low so repeated runs produce similar structure
	Temperature     float32 `json:"temperature"`
	MaxOutputTokens int32   `json:"max_output_tokens"`
	// MaxMaterialChars caps the material text placed in a single prompt
	MaxMaterialChars int `json:"max_material_chars"`
	// RequestsPerMinute throttles model calls made by one client
	RequestsPerMinute int `json:"requests_per_minute"`
}

// DefaultConfig returns the default configuration (currently Gemini)
func DefaultConfig() *Config {
	return &Config{
		Provider:          ProviderGemini,
		Model:             "gemini-2.5-flash",
		Temperature:       0.2,
		MaxOutputTokens:   8192,
		MaxMaterialChars:  60000,
		RequestsPerMinute: 10,
	}
}

// WithModel returns a copy of the config using model
func (c *Config) WithModel(model string) *Config {
	next := *c
	next.Model = model
	return &next
}

// withDefaults fills zero fields from DefaultConfig
func (c *Config) withDefaults() *Config {
	d := DefaultConfig()
	if c == nil {
		return d
	}
	next := *c
	if next.Provider == "" {
		next.Provider = d.Provider
	}
	if next.Model == "" {
		next.Model = d.Model
	}
	if next.MaxOutputTokens <= 0 {
		next.MaxOutputTokens = d.MaxOutputTokens
	}
	if next.MaxMaterialChars <= 0 {
		next.MaxMaterialChars = d.MaxMaterialChars
	}
	if next.RequestsPerMinute <= 0 {
		next.RequestsPerMinute = d.RequestsPerMinute
	}
	return &next
}

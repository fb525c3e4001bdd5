// In file: internal/llm/constants.go
package llm

import "time"

// Shared by the provider clients.
const (
	defaultTimeout    = 120 * time.Second
	maxRetries        = 3
	initialRetryDelay = 2 * time.Second

	// defaultMaxOutputTokens applies when the configuration leaves MaxTokens unset.
	defaultMaxOutputTokens = 4096
)

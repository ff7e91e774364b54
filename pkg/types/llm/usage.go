package llm

// Usage represents token usage information from LLM API calls
type Usage struct {
	InputTokens  int // Prompt tokens count
	OutputTokens int // Completion tokens generated
}

// TotalTokens returns the total number of tokens used
func (u *Usage) TotalTokens() int {
	return u.InputTokens + u.OutputTokens
}

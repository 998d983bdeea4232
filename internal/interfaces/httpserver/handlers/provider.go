package handlers

// Provider wires all HTTP handlers for dependency injection.
type Provider struct {
	Ask *AskHandler
}

// NewProvider constructs the handler provider with domain services.
func NewProvider(askService AskService) *Provider {
	return &Provider{
		Ask: NewAskHandler(askService),
	}
}

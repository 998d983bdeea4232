package llmprovider

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/janhq/sql-agent/internal/utils/platformerrors"
)

// CheckModel verifies that the provider is reachable and serves the
// configured model. It backs the readiness check.
func (c *Client) CheckModel(ctx context.Context) error {
	var models openai.ModelsList
	resp, err := c.prepareRequest(ctx).
		SetResult(&models).
		Get(c.endpoint("/models"))
	if err != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal, "list models failed", err, "")
	}
	if resp.IsError() {
		return c.errorFromResponse(ctx, resp, "list models failed")
	}

	for _, model := range models.Models {
		if model.ID == c.model {
			return nil
		}
	}
	return platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeNotFound,
		fmt.Sprintf("model %q is not served by the provider", c.model), nil, "")
}

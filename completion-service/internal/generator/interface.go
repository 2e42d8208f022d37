package generator

import (
	"context"

	"github.com/weiawesome/wes-io-collab/completion-service/internal/domain"
)

// Generator produces completion candidates for a prompt.
type Generator interface {
	Complete(ctx context.Context, p domain.Prompt) ([]string, error)
}

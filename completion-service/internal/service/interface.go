package service

import (
	"context"

	"github.com/weiawesome/wes-io-collab/completion-service/internal/domain"
)

// CompletionService answers completion requests.
type CompletionService interface {
	// Complete normalizes req and returns suggestions, from cache when
	// possible. It returns domain.ErrInvalidOffset for bad cursor offsets.
	Complete(ctx context.Context, req *domain.CompletionRequest) (*domain.CompletionResponse, error)
}

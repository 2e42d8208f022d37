package log

import (
	"context"

	"github.com/rs/zerolog"
)

type ctxKey struct{}

// WithLogger stores a logger in the context.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// Ctx retrieves the logger from the context, falling back to the global one.
func Ctx(ctx context.Context) zerolog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxKey{}).(zerolog.Logger); ok {
			return l
		}
	}
	return L()
}

// WithRoom returns ctx carrying a child logger tagged with the room and participant.
func WithRoom(ctx context.Context, roomID, participantID string) context.Context {
	l := Ctx(ctx).With().
		Str(FieldRoomID, roomID).
		Str(FieldParticipantID, participantID).
		Logger()
	return WithLogger(ctx, l)
}

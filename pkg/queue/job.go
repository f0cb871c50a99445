package queue

import "context"

// Job is a unit of background work. Type binds it to a message type;
// Name is used for logging.
type Job interface {
	Name() string
	Type() string
	Handle(ctx context.Context, payload interface{}) error
}

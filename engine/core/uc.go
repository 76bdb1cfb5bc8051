package core

import "context"

// Usecase is the contract every use case in the engine implements.
type Usecase[T any] interface {
	Execute(ctx context.Context) (T, error)
}

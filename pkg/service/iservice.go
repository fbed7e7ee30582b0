package service

import "context"

// IService is a long-running serving surface owned by the runtime.
type IService interface {
	Serve(ctx context.Context) error
}

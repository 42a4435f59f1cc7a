package health

import "context"

// ReadinessCheck is implemented by components the service cannot serve
// without. The app polls these in the background and exposes the combined
// result on /healthz.
type ReadinessCheck interface {
	IsReady(ctx context.Context) error
	Name() string
}

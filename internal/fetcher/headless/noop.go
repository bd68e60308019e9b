package headless

import (
	"context"
	"errors"

	"github.com/JakeFAU/dice-jobs-crawler/internal/crawler"
)

// ErrDisabled is returned by Noop.
var ErrDisabled = errors.New("headless fetcher not configured")

// Noop stands in for the browser when headless rendering is turned off.
type Noop struct{}

// NewNoop creates a new Noop fetcher.
func NewNoop() *Noop {
	return &Noop{}
}

// Fetch always fails with ErrDisabled.
func (Noop) Fetch(_ context.Context, _ crawler.FetchRequest) (crawler.FetchResponse, error) {
	return crawler.FetchResponse{}, ErrDisabled
}

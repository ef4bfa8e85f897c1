package imageref

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Resolver fetches remote image references and pins them into the
// embedded form. The byte content is carried over untouched.
type Resolver struct {
	httpClient *resty.Client
}

// ResolverOpts configures a Resolver.
type ResolverOpts struct {
	Timeout time.Duration
}

// NewResolver creates a Resolver with its own HTTP client.
func NewResolver(opts ResolverOpts) *Resolver {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Resolver{
		httpClient: resty.New().SetTimeout(timeout),
	}
}

// Resolve converts a remote ref into an embedded one by fetching its
// bytes. Embedded refs are returned unchanged. The MIME type comes from
// the response Content-Type, defaulting to image/png.
func (r *Resolver) Resolve(ctx context.Context, ref Ref) (Ref, error) {
	if !ref.IsRemote() {
		return ref, nil
	}

	resp, err := r.httpClient.R().SetContext(ctx).Get(ref.URL)
	if err != nil {
		return Ref{}, fmt.Errorf("fetching image: %w", err)
	}
	if resp.IsError() {
		return Ref{}, fmt.Errorf("fetching image: status %d", resp.StatusCode())
	}

	return FromBytes(resp.Body(), resp.Header().Get("Content-Type")), nil
}

// Package idempotency replays the stored response of a request whose
// Idempotency-Key was already seen.
package idempotency

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
)

// ErrInFlight is returned by Begin while another request with the same key
// has not finished.
var ErrInFlight = errors.New("request with this idempotency key is in progress")

type Response struct {
	Status int    `json:"status"`
	Body   []byte `json:"body"`
}

type Store interface {
	Get(ctx context.Context, key string) (*Response, error)
	Set(ctx context.Context, key string, resp Response, ttl time.Duration) error
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

type Idempotency struct {
	store    Store
	ttl      time.Duration
	claimTTL time.Duration
}

// NewIdempotency keeps responses for ttl. claimTTL bounds how long a crashed
// request can block its key and should exceed the request timeout.
func NewIdempotency(store Store, ttl, claimTTL time.Duration) *Idempotency {
	return &Idempotency{store: store, ttl: ttl, claimTTL: claimTTL}
}

// Begin returns the stored response for key, if any. Otherwise it claims the
// key; the caller must then call Finish.
func (i *Idempotency) Begin(ctx context.Context, key string) (*Response, error) {
	resp, err := i.store.Get(ctx, key)
	if err != nil {
		return nil, errors.Wrap(err, "idempotency lookup")
	}
	if resp != nil {
		return resp, nil
	}
	ok, err := i.store.Claim(ctx, key, i.claimTTL)
	if err != nil {
		return nil, errors.Wrap(err, "idempotency claim")
	}
	if !ok {
		return nil, ErrInFlight
	}
	// The previous holder may have finished between the lookup and the claim.
	resp, err = i.store.Get(ctx, key)
	if err != nil {
		return nil, errors.CombineErrors(errors.Wrap(err, "idempotency lookup"), i.store.Release(ctx, key))
	}
	if resp != nil {
		if err := i.store.Release(ctx, key); err != nil {
			return nil, errors.Wrap(err, "idempotency release")
		}
		return resp, nil
	}
	return nil, nil
}

// Finish stores resp for replay and drops the claim. Server errors are not
// stored so the client may retry them.
func (i *Idempotency) Finish(ctx context.Context, key string, resp Response) error {
	var err error
	if resp.Status < 500 {
		err = i.store.Set(ctx, key, resp, i.ttl)
	}
	return errors.CombineErrors(err, i.store.Release(ctx, key))
}

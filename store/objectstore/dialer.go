package objectstore

import (
	"context"
	"io"
	"sync"
)

// Dialer returns the client for the current settings.
type Dialer func(ctx context.Context) (Client, error)

// Static returns a Dialer that always hands out c.
func Static(c Client) Dialer {
	return func(context.Context) (Client, error) {
		return c, nil
	}
}

// Cached returns a Dialer that builds a client with dial and reuses it for
// as long as fingerprint returns the same value. When the fingerprint
// changes the old client is closed if it implements io.Closer. Failed dials
// are not cached.
func Cached(fingerprint func() string, dial Dialer) Dialer {
	var (
		mu      sync.Mutex
		current Client
		key     string
	)
	return func(ctx context.Context) (Client, error) {
		fp := fingerprint()

		mu.Lock()
		defer mu.Unlock()
		if current != nil && key == fp {
			return current, nil
		}

		c, err := dial(ctx)
		if err != nil {
			return nil, err
		}
		if closer, ok := current.(io.Closer); ok {
			closer.Close() //nolint:errcheck
		}
		current, key = c, fp
		return c, nil
	}
}

// Package icp provides the direct query client against the Kinic
// canister. Initialization is lazy and happens at most once per process:
// a failure to obtain credentials or build the agent permanently marks
// the client unavailable until the process restarts.
package icp

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"
)

// EmbeddingDim is the vector dimensionality the Kinic canister requires.
const EmbeddingDim = 1024

var (
	// ErrUnavailable indicates the client failed to initialize and will
	// not recover within this process lifetime.
	ErrUnavailable = errors.New("icp client unavailable")

	// ErrInvalidInput indicates a malformed request, such as an
	// embedding of the wrong dimensionality.
	ErrInvalidInput = errors.New("invalid input")
)

// Hit is one search result from the canister: a similarity score and the
// stored payload text.
type Hit struct {
	Similarity float64
	Payload    string
}

// Options configures a Client. Zero values fall back to the constants
// the production canister uses.
type Options struct {
	IdentityName string
	ICURL        string        // boundary node URL, default https://ic0.app
	QueryTimeout time.Duration // per-call bound, default 15s

	// Exporter obtains PEM key material; defaults to DfxExporter.
	Exporter IdentityExporter

	// NewTransport builds the query transport from exported PEM bytes.
	// Defaults to NewAgentTransport. Tests inject fakes here.
	NewTransport func(pem []byte, host *url.URL) (Transport, error)
}

// Client performs query-style calls against a fixed canister using
// credentials obtained out-of-band. The zero-to-initialized transition
// happens exactly once, on the first call to IsAvailable or Search.
type Client struct {
	identityName string
	icURL        *url.URL
	queryTimeout time.Duration
	exporter     IdentityExporter
	newTransport func(pem []byte, host *url.URL) (Transport, error)

	initOnce  sync.Once
	transport Transport
	initErr   error
}

// NewClient creates an uninitialized client. No credentials are touched
// until the first call.
func NewClient(opts Options) (*Client, error) {
	rawURL := opts.ICURL
	if rawURL == "" {
		rawURL = "https://ic0.app"
	}
	host, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("icp: invalid IC URL %q: %w", rawURL, err)
	}

	c := &Client{
		identityName: opts.IdentityName,
		icURL:        host,
		queryTimeout: opts.QueryTimeout,
		exporter:     opts.Exporter,
		newTransport: opts.NewTransport,
	}
	if c.identityName == "" {
		c.identityName = "default"
	}
	if c.queryTimeout == 0 {
		c.queryTimeout = 15 * time.Second
	}
	if c.exporter == nil {
		c.exporter = &DfxExporter{}
	}
	if c.newTransport == nil {
		c.newTransport = NewAgentTransport
	}
	return c, nil
}

// ensureInitialized performs the one-shot initialization. A failure is
// cached for the remainder of the process.
func (c *Client) ensureInitialized(ctx context.Context) bool {
	c.initOnce.Do(func() {
		pem, err := c.exporter.Export(ctx, c.identityName)
		if err != nil {
			c.initErr = err
			log.Printf("icp: initialization failed: %v", err)
			return
		}

		transport, err := c.newTransport(pem, c.icURL)
		if err != nil {
			c.initErr = err
			log.Printf("icp: initialization failed: %v", err)
			return
		}

		c.transport = transport
		log.Printf("icp: client initialized with identity %s", c.identityName)
	})
	return c.initErr == nil
}

// IsAvailable forces initialization if it has not been attempted yet and
// reports whether the client is usable. It never raises.
func (c *Client) IsAvailable(ctx context.Context) bool {
	return c.ensureInitialized(ctx)
}

// InitError returns the cached initialization error, if any.
func (c *Client) InitError() error {
	return c.initErr
}

// Search queries the canister with an embedding vector and returns up to
// limit (similarity, payload) hits. A reply that does not match the
// expected shape yields an empty slice rather than an error.
func (c *Client) Search(ctx context.Context, canisterID string, embedding []float32, limit int) ([]Hit, error) {
	if !c.ensureInitialized(ctx) {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, c.initErr)
	}
	if len(embedding) != EmbeddingDim {
		return nil, fmt.Errorf("%w: embedding must be %d dimensions, got %d",
			ErrInvalidInput, EmbeddingDim, len(embedding))
	}

	ctx, cancel := context.WithTimeout(ctx, c.queryTimeout)
	defer cancel()

	reply, err := c.transport.Query(ctx, canisterID, "search", []any{embedding})
	if err != nil {
		return nil, fmt.Errorf("icp: query failed: %w", err)
	}

	return parseHits(reply, limit), nil
}

// parseHits extracts (score, payload) pairs from a decoded canister
// reply. Each element is expected to be a two-field pair; anything else
// is silently dropped. Malformed or absent results are not failures.
func parseHits(reply []any, limit int) []Hit {
	hits := make([]Hit, 0, len(reply))
	for _, item := range reply {
		if limit >= 0 && len(hits) >= limit {
			break
		}

		pair, ok := item.([]any)
		if !ok || len(pair) < 2 {
			continue
		}
		score, ok := toFloat(pair[0])
		if !ok {
			continue
		}
		payload, ok := pair[1].(string)
		if !ok {
			continue
		}
		hits = append(hits, Hit{Similarity: score, Payload: payload})
	}
	return hits
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

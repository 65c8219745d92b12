package icp

import (
	"context"
	"fmt"
	"net/url"

	"github.com/aviate-labs/agent-go"
	"github.com/aviate-labs/agent-go/identity"
	"github.com/aviate-labs/agent-go/principal"
)

// Transport performs a single query-style call against a canister and
// returns the decoded reply values. The reply shape is not guaranteed;
// callers parse it defensively.
type Transport interface {
	Query(ctx context.Context, canisterID, method string, args []any) ([]any, error)
}

// agentTransport implements Transport on the agent-go ICP agent.
type agentTransport struct {
	agent *agent.Agent
}

// NewAgentTransport builds a Transport from exported PEM key material and
// the URL of an IC boundary node. dfx exports secp256k1 keys by default;
// ed25519 is tried as a fallback for older identities.
func NewAgentTransport(pem []byte, host *url.URL) (Transport, error) {
	id, err := parseIdentity(pem)
	if err != nil {
		return nil, err
	}

	ag, err := agent.New(agent.Config{
		Identity:     id,
		ClientConfig: &agent.ClientConfig{Host: host},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create agent: %w", err)
	}
	return &agentTransport{agent: ag}, nil
}

func parseIdentity(pem []byte) (identity.Identity, error) {
	if id, err := identity.NewSecp256k1IdentityFromPEM(pem); err == nil {
		return id, nil
	}
	id, err := identity.NewEd25519IdentityFromPEM(pem)
	if err != nil {
		return nil, fmt.Errorf("unsupported identity key: %w", err)
	}
	return id, nil
}

func (t *agentTransport) Query(ctx context.Context, canisterID, method string, args []any) ([]any, error) {
	target, err := principal.Decode(canisterID)
	if err != nil {
		return nil, fmt.Errorf("invalid canister id %q: %w", canisterID, err)
	}

	done := make(chan struct{})
	var reply []any
	var queryErr error
	go func() {
		defer close(done)
		queryErr = t.agent.Query(target, method, args, []any{&reply})
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-done:
		return reply, queryErr
	}
}

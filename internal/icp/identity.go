package icp

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"
)

// IdentityExporter obtains PEM key material for a named identity. It is
// treated as a black box: it returns either valid PEM bytes or an error.
type IdentityExporter interface {
	Export(ctx context.Context, name string) ([]byte, error)
}

// DfxExporter exports identities through the dfx CLI, the same mechanism
// operators use to manage canister identities.
type DfxExporter struct {
	// Timeout bounds the export subprocess. Zero means 10 seconds.
	Timeout time.Duration
}

// Export runs `dfx identity export <name>` and returns the PEM output.
func (e *DfxExporter) Export(ctx context.Context, name string) ([]byte, error) {
	timeout := e.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "dfx", "identity", "export", name)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("failed to export identity %q: %v: %s", name, err, stderr.String())
	}

	pem := stdout.Bytes()
	if !bytes.Contains(pem, []byte("BEGIN")) {
		return nil, fmt.Errorf("invalid PEM data for identity %q", name)
	}
	return pem, nil
}

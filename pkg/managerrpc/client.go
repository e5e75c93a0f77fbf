// Package managerrpc is a thin gRPC client stub for the optional manager
// peer process (reboot, software update, system/software info). Per
// spec.md §1, the core does not depend on the manager at runtime beyond
// this optional RPC client — every method returns apperrors.ErrFeatureDisabled
// when no manager address is configured. Grounded on the teacher's
// pkg/agent/llm_grpc.go (grpc.NewClient with insecure transport over a
// generated proto client) and on original_source's
// crates/manager/src/client.rs / crates/manager/src/server/reboot.rs.
package managerrpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	managerrpcv1 "github.com/afrodite/datingcore/proto/managerrpcv1"
	"github.com/afrodite/datingcore/pkg/apperrors"
)

// Client wraps the generated ManagerServiceClient. A nil conn means no
// manager address was configured; every call then returns
// apperrors.ErrFeatureDisabled without attempting a network call.
type Client struct {
	conn *grpc.ClientConn
	rpc  managerrpcv1.ManagerServiceClient
}

// New dials addr and wraps the connection. Pass an empty addr to get a
// disabled client (every call returns ErrFeatureDisabled) — this is the
// expected configuration when no manager binary is deployed alongside
// the core.
func New(addr string) (*Client, error) {
	if addr == "" {
		return &Client{}, nil
	}
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrExternal, err)
	}
	return &Client{conn: conn, rpc: managerrpcv1.NewManagerServiceClient(conn)}, nil
}

func (c *Client) enabled() bool { return c.conn != nil }

// SystemInfo reports the manager's view of deployed system instances.
func (c *Client) SystemInfo(ctx context.Context) ([]managerrpcv1.SystemInfo, error) {
	if !c.enabled() {
		return nil, apperrors.ErrFeatureDisabled
	}
	resp, err := c.rpc.SystemInfo(ctx, &managerrpcv1.SystemInfoRequest{})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrExternal, err)
	}
	out := make([]managerrpcv1.SystemInfo, 0, len(resp.Systems))
	for _, s := range resp.Systems {
		out = append(out, *s)
	}
	return out, nil
}

// SoftwareInfo reports the manager's currently running build/version.
func (c *Client) SoftwareInfo(ctx context.Context) (*managerrpcv1.SoftwareInfoResponse, error) {
	if !c.enabled() {
		return nil, apperrors.ErrFeatureDisabled
	}
	resp, err := c.rpc.SoftwareInfo(ctx, &managerrpcv1.SoftwareInfoRequest{})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrExternal, err)
	}
	return resp, nil
}

// RequestUpdateSoftware asks the manager to deploy buildID, optionally
// rebooting once the update is applied.
func (c *Client) RequestUpdateSoftware(ctx context.Context, buildID string, reboot bool) error {
	if !c.enabled() {
		return apperrors.ErrFeatureDisabled
	}
	_, err := c.rpc.RequestUpdateSoftware(ctx, &managerrpcv1.RequestUpdateSoftwareRequest{
		BuildId: buildID,
		Reboot:  reboot,
	})
	if err != nil {
		return apperrors.Wrap(apperrors.ErrExternal, err)
	}
	return nil
}

// RequestReboot asks the manager to reboot the host system.
func (c *Client) RequestReboot(ctx context.Context) error {
	if !c.enabled() {
		return apperrors.ErrFeatureDisabled
	}
	_, err := c.rpc.RequestReboot(ctx, &managerrpcv1.RequestRebootRequest{})
	if err != nil {
		return apperrors.Wrap(apperrors.ErrExternal, err)
	}
	return nil
}

// Close releases the underlying gRPC connection, if any.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

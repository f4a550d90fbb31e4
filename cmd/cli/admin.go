package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/turtacn/clusterkeys/internal/interfaces/http/middleware"
	"github.com/turtacn/clusterkeys/pkg/constants"
	"github.com/turtacn/clusterkeys/pkg/errors"
)

// adminOptions address the admin API of a running node.
type adminOptions struct {
	url       string
	jwtSecret string
	issuer    string
	timeout   time.Duration
}

// adminClient is a thin JSON client for the node's HTTP API.
type adminClient struct {
	opts   *adminOptions
	client *http.Client
}

func newAdminCommand() *cobra.Command {
	opts := &adminOptions{}
	adminCmd := &cobra.Command{
		Use:   "admin",
		Short: "Talk to the admin API of a running node",
	}
	adminCmd.PersistentFlags().StringVar(&opts.url, "url", fmt.Sprintf("http://localhost:%d", constants.DefaultServicePort), "base URL of the node")
	adminCmd.PersistentFlags().StringVar(&opts.jwtSecret, "jwt-secret", "", "HS256 secret of the admin API (admin.jwt_secret)")
	adminCmd.PersistentFlags().StringVar(&opts.issuer, "issuer", "", "issuer claim expected by the node (admin.issuer)")
	adminCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", constants.DefaultRequestTimeout, "request timeout")

	serveCheckCmd := &cobra.Command{
		Use:   "serve-check",
		Short: "Exit non-zero unless the node reports ready",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newAdminClient(opts)
			body, status, err := c.do(cmd.Context(), http.MethodGet, constants.DefaultReadinessCheckPath, nil, false)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSpace(string(body)))
			if status != http.StatusOK {
				return errors.IllegalState(fmt.Sprintf("node is not ready (HTTP %d)", status))
			}
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Print the key manager status of the node",
		RunE: func(cmd *cobra.Command, args []string) error {
			return newAdminClient(opts).print(cmd, http.MethodGet, "/v1/keys/status", nil, false)
		},
	}

	refreshCmd := &cobra.Command{
		Use:   "refresh",
		Short: "Force an immediate refresh cycle on the node",
		RunE: func(cmd *cobra.Command, args []string) error {
			return newAdminClient(opts).print(cmd, http.MethodPost, "/v1/keys/refresh", nil, true)
		},
	}

	var enabled bool
	generatorCmd := &cobra.Command{
		Use:   "generator",
		Short: "Enable or disable key generation on the node",
		RunE: func(cmd *cobra.Command, args []string) error {
			return newAdminClient(opts).print(cmd, http.MethodPut, "/v1/keys/generator", map[string]bool{"enabled": enabled}, true)
		},
	}
	generatorCmd.Flags().BoolVar(&enabled, "enabled", true, "whether the node may generate keys")

	var on bool
	switchCmd := &cobra.Command{
		Use:   "switch NAME",
		Short: "Pin a runtime switch (disableKeyGeneration, failStoreWrites, failStoreReads)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return newAdminClient(opts).print(cmd, http.MethodPut, "/v1/keys/switches/"+args[0], map[string]bool{"on": on}, true)
		},
	}
	switchCmd.Flags().BoolVar(&on, "on", true, "switch state")

	adminCmd.AddCommand(serveCheckCmd, statusCmd, refreshCmd, generatorCmd, switchCmd)
	return adminCmd
}

func newAdminClient(opts *adminOptions) *adminClient {
	return &adminClient{opts: opts, client: &http.Client{Timeout: opts.timeout}}
}

// token mints a short-lived admin bearer token.
func (c *adminClient) token() (string, error) {
	if c.opts.jwtSecret == "" {
		return "", errors.InvalidArgument("--jwt-secret is required for admin operations")
	}
	return middleware.NewAdminToken([]byte(c.opts.jwtSecret), "keys-admin", c.opts.issuer, time.Minute)
}

func (c *adminClient) do(ctx context.Context, method, path string, payload interface{}, authenticated bool) ([]byte, int, error) {
	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, errors.Wrap(err, errors.CodeInternal, "encode request")
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.opts.url, "/")+path, body)
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.CodeInvalidArgument, "build request")
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authenticated {
		token, err := c.token()
		if err != nil {
			return nil, 0, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.CodeStoreUnavailable, "node unreachable")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, errors.Wrap(err, errors.CodeInternal, "read response")
	}
	return data, resp.StatusCode, nil
}

// print writes the response body and turns a non-2xx status into an error.
func (c *adminClient) print(cmd *cobra.Command, method, path string, payload interface{}, authenticated bool) error {
	data, status, err := c.do(cmd.Context(), method, path, payload, authenticated)
	if err != nil {
		return err
	}
	var pretty bytes.Buffer
	if json.Indent(&pretty, data, "", "  ") == nil {
		data = pretty.Bytes()
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	if status < 200 || status >= 300 {
		return errors.New(errors.CodeInternal, fmt.Sprintf("%s %s failed with HTTP %d", method, path, status))
	}
	return nil
}

//Personal.AI order the ending

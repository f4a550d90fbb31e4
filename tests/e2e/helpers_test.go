package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/turtacn/clusterkeys/internal/domain/repository"
	"github.com/turtacn/clusterkeys/internal/serverlite"
)

// apiEnvelope mirrors dto.APIResponse with a raw data field.
type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code string `json:"code"`
	} `json:"error"`
}

type keyBody struct {
	KeyID   int64  `json:"key_id"`
	Purpose string `json:"purpose"`
}

// startNode builds and starts a node, stopping it at test cleanup.
func startNode(t *testing.T, repo repository.KeyRepository, opts serverlite.Options) *serverlite.Node {
	t.Helper()
	node, err := serverlite.NewNode(repo, opts)
	require.NoError(t, err)
	require.NoError(t, node.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = node.Stop(ctx)
	})
	return node
}

// call issues a request against node and decodes the envelope.
func call(t *testing.T, node *serverlite.Node, method, path string, body interface{}, token string) (int, *apiEnvelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequest(method, node.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	env := &apiEnvelope{}
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = json.Unmarshal(data, env)
	return resp.StatusCode, env
}

func decodeKey(t *testing.T, env *apiEnvelope) keyBody {
	t.Helper()
	var k keyBody
	require.NoError(t, json.Unmarshal(env.Data, &k))
	return k
}

// aiOS Core - Control Plane for Autonomous Agent Infrastructure
// SPDX-License-Identifier: AGPL-3.0-or-later

package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MohaMehrzad/aios-core/internal/cluster"
)

func TestExecuteRemoteToolSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req remoteExecuteRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "fs.read", req.ToolName)
		_ = json.NewEncoder(w).Encode(remoteExecuteResponse{Success: true, OutputJSON: []byte(`{"ok":true}`)})
	}))
	defer srv.Close()

	exec := NewExecutor(time.Second, 5*time.Second)
	node := cluster.Node{NodeID: "n1", Address: srv.URL}

	out, err := exec.ExecuteRemoteTool(context.Background(), node, "fs.read", []byte(`{"path":"/tmp"}`))
	require.NoError(t, err)
	require.JSONEq(t, `{"ok":true}`, string(out))
}

func TestExecuteRemoteToolFailureResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(remoteExecuteResponse{Success: false, Error: "boom"})
	}))
	defer srv.Close()

	exec := NewExecutor(time.Second, 5*time.Second)
	node := cluster.Node{NodeID: "n1", Address: srv.URL}

	_, err := exec.ExecuteRemoteTool(context.Background(), node, "fs.read", nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "boom")
}

func TestSubmitRemoteGoal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(submitGoalResponse{ID: "goal-123"})
	}))
	defer srv.Close()

	exec := NewExecutor(time.Second, 5*time.Second)
	id, err := exec.SubmitRemoteGoal(context.Background(), srv.URL, "do a thing", 1, "test")
	require.NoError(t, err)
	require.Equal(t, "goal-123", id)
}

func TestExecuteRemoteToolServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("server exploded"))
	}))
	defer srv.Close()

	exec := NewExecutor(time.Second, 5*time.Second)
	node := cluster.Node{NodeID: "n1", Address: srv.URL}

	_, err := exec.ExecuteRemoteTool(context.Background(), node, "fs.read", nil)
	require.Error(t, err)
}

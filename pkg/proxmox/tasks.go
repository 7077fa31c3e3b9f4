package proxmox

import (
	"context"
	"fmt"
	"strings"

	"github.com/openhyve/openhyve/pkg/engine"
)

// taskStatusResponse is the task status endpoint payload.
type taskStatusResponse struct {
	Status     string `json:"status"`
	ExitStatus string `json:"exitstatus"`
}

// NodeOf extracts the node name from a UPID task handle. Handles look
// like "UPID:node:00001234:0012ABCD:5F3E1A2B:qmcreate:100:root@pam:".
func NodeOf(handle engine.TaskHandle) (string, error) {
	parts := strings.Split(string(handle), ":")
	if len(parts) < 3 || parts[0] != "UPID" || parts[1] == "" {
		return "", fmt.Errorf("malformed task handle %q", handle)
	}
	return parts[1], nil
}

// QueryTask implements engine.TaskQuerier against the per-task status
// endpoint. A task is terminal once its status leaves "running"; the
// exit status decides success ("OK") versus failure, with the raw exit
// text preserved as diagnostic info.
func (c *Client) QueryTask(ctx context.Context, handle engine.TaskHandle) (engine.TaskStatus, error) {
	node, err := NodeOf(handle)
	if err != nil {
		return engine.TaskStatus{}, engine.NewRejectedError("unpollable task handle", err)
	}

	var status taskStatusResponse
	path := fmt.Sprintf("/nodes/%s/tasks/%s/status", node, handle)
	if err := c.Get(ctx, path, &status); err != nil {
		return engine.TaskStatus{}, err
	}

	if status.Status == "running" {
		return engine.TaskStatus{State: engine.TaskStateRunning}, nil
	}
	if status.ExitStatus == "OK" {
		return engine.TaskStatus{State: engine.TaskStateSucceeded}, nil
	}
	return engine.TaskStatus{
		State:    engine.TaskStateFailed,
		ExitInfo: status.ExitStatus,
	}, nil
}

// activeTask is one entry of the active task listing.
type activeTask struct {
	UPID   string `json:"upid"`
	Status string `json:"status"`
}

// CountRunningTasks implements engine.RunningTaskCounter with the
// coarse per-node active task listing, for operations that do not hand
// back a task identifier of their own.
func (c *Client) CountRunningTasks(ctx context.Context, scope engine.TaskScope) (int, error) {
	var tasks []activeTask
	path := fmt.Sprintf("/nodes/%s/tasks?source=active", scope.Node)
	if err := c.Get(ctx, path, &tasks); err != nil {
		if engine.IsNotFound(err) {
			// An empty envelope means an empty queue, not a fault.
			return 0, nil
		}
		return 0, err
	}

	running := 0
	for _, t := range tasks {
		if t.Status == "running" {
			running++
		}
	}
	return running, nil
}

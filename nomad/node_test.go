package nomad_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rflorenc/go-nomad/nomad"
)

func TestNode_GetAndLookup(t *testing.T) {
	srv, client := setup(t)
	id := srv.AddNode(map[string]any{"Name": "worker-1", "Datacenter": "dc1"})
	ctx := context.Background()

	node, err := client.Node().Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "worker-1", node.Name())
	assert.Equal(t, "ready", node.String("Status"))

	ok, err := client.Node().Exists(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.Node().Exists(ctx, "not-a-node")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = client.Node().Lookup(ctx, id)
	require.NoError(t, err)
}

func TestNode_List(t *testing.T) {
	srv, client := setup(t)
	srv.AddNode(map[string]any{"ID": "aaaa-1", "NodeResources": map[string]any{"Cpu": map[string]any{"CpuShares": 4000}}})
	srv.AddNode(map[string]any{"ID": "bbbb-2"})
	ctx := context.Background()

	nodes, err := client.Nodes().List(ctx, nomad.NodeListOptions{Prefix: "aaaa"})
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Nil(t, nodes[0]["NodeResources"])
	assert.False(t, srv.LastRequest().Query.Has("resources"))

	nodes, err = client.Nodes().List(ctx, nomad.NodeListOptions{Prefix: "aaaa", Resources: nomad.Bool(true)})
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.NotNil(t, nodes[0].Map("NodeResources"))
}

func TestNode_Allocations(t *testing.T) {
	srv, client := setup(t)
	id := srv.AddNode(nil)
	srv.AddAllocation(map[string]any{"NodeID": id, "JobID": "web"})
	srv.AddAllocation(map[string]any{"NodeID": "elsewhere", "JobID": "web"})

	allocs, err := client.Node().Allocations(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, allocs, 1)
	assert.Equal(t, id, allocs[0].String("NodeID"))
}

func TestNode_Evaluate(t *testing.T) {
	srv, client := setup(t)
	id := srv.AddNode(nil)

	resp, err := client.Node().Evaluate(context.Background(), id)
	require.NoError(t, err)
	assert.Len(t, resp["EvalIDs"], 1)
	assert.Equal(t, "/v1/node/"+id+"/evaluate", srv.LastRequest().Path)
}

func TestNode_DrainLegacy(t *testing.T) {
	srv, client := setup(t)
	id := srv.AddNode(nil)
	ctx := context.Background()

	_, err := client.Node().Drain(ctx, id, true)
	require.NoError(t, err)
	assert.Equal(t, "true", srv.LastRequest().Query.Get("enable"))
	assert.Equal(t, true, srv.Node(id)["Drain"])

	_, err = client.Node().Drain(ctx, id, false)
	require.NoError(t, err)
	assert.Equal(t, "false", srv.LastRequest().Query.Get("enable"))
	assert.Equal(t, false, srv.Node(id)["Drain"])
}

func TestNode_DrainWithSpec(t *testing.T) {
	srv, client := setup(t)
	id := srv.AddNode(nil)
	ctx := context.Background()

	_, err := client.Node().DrainWithSpec(ctx, id, nomad.Record{"Deadline": 60000000000}, nil)
	require.NoError(t, err)
	body := string(srv.LastRequest().Body)
	assert.Contains(t, body, `"DrainSpec":{"Deadline":60000000000}`)
	assert.NotContains(t, body, "MarkEligible")
	assert.Equal(t, "ineligible", srv.Node(id)["SchedulingEligibility"])

	_, err = client.Node().DrainWithSpec(ctx, id, nil, nomad.Bool(true))
	require.NoError(t, err)
	body = string(srv.LastRequest().Body)
	assert.Contains(t, body, `"DrainSpec":null`)
	assert.Contains(t, body, `"MarkEligible":true`)
	assert.Equal(t, "eligible", srv.Node(id)["SchedulingEligibility"])
}

func TestNode_SetEligibility(t *testing.T) {
	srv, client := setup(t)
	id := srv.AddNode(nil)
	ctx := context.Background()

	_, err := client.Node().SetEligibility(ctx, id, nil, nomad.Bool(true))
	require.NoError(t, err)
	assert.Equal(t, "ineligible", srv.Node(id)["SchedulingEligibility"])

	_, err = client.Node().SetEligibility(ctx, id, nomad.Bool(true), nil)
	require.NoError(t, err)
	assert.Equal(t, "eligible", srv.Node(id)["SchedulingEligibility"])
}

func TestNode_SetEligibilityInvalidSendsNothing(t *testing.T) {
	srv, client := setup(t)
	id := srv.AddNode(nil)
	ctx := context.Background()

	_, err := client.Node().SetEligibility(ctx, id, nomad.Bool(true), nomad.Bool(false))
	assert.True(t, nomad.IsInvalidParameters(err))

	_, err = client.Node().SetEligibility(ctx, id, nil, nil)
	assert.True(t, nomad.IsInvalidParameters(err))

	assert.Empty(t, srv.Requests())
}

func TestNode_EligibleWhileDrainingRejected(t *testing.T) {
	srv, client := setup(t)
	id := srv.AddNode(map[string]any{"Drain": true, "SchedulingEligibility": "ineligible"})

	_, err := client.Node().SetEligibility(context.Background(), id, nomad.Bool(true), nil)
	var apiErr *nomad.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "draining")
}

func TestNode_Purge(t *testing.T) {
	srv, client := setup(t)
	id := srv.AddNode(nil)
	ctx := context.Background()

	_, err := client.Node().Purge(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, srv.Node(id))

	_, err = client.Node().Purge(ctx, id)
	assert.True(t, nomad.IsNotFound(err))
}

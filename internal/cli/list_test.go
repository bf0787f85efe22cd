package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestList_Text(t *testing.T) {
	ws := newWorkspace(t, map[string]map[string]string{
		"simple":  single("FROM busybox\n"),
		"chained": chain("FROM busybox\n", "FROM scratch\n"),
	})

	out, err := execute(NewListCommand(ws.rootOptions("text")))
	require.NoError(t, err)

	want := `chained (chain, 2 steps)
  1 Dockerfile.1 -> chained_1_docker, chained_1_compile
  2 Dockerfile.2 -> chained_2_docker, chained_2_compile
simple (single)
  Dockerfile -> simple_docker, simple_compile

2 fixture(s)
`
	assert.Equal(t, want, out)
	assert.Empty(t, ws.engine.Calls, "list must not invoke any backend")
}

func TestList_JSON(t *testing.T) {
	ws := newWorkspace(t, map[string]map[string]string{
		"my fixture": single("FROM busybox\n"),
	})

	out, err := execute(NewListCommand(ws.rootOptions("json")))
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   []FixtureListing `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data, 1)

	l := resp.Data[0]
	assert.Equal(t, "my_fixture", l.ID)
	assert.Equal(t, "my fixture", l.Name)
	assert.True(t, l.Single)
	require.Len(t, l.Steps, 1)
	assert.Equal(t, "my_fixture_docker", l.Steps[0].Reference)
	assert.Equal(t, "my_fixture_compile", l.Steps[0].Candidate)
}

func TestList_Filter(t *testing.T) {
	ws := newWorkspace(t, map[string]map[string]string{
		"cart_add":      single("FROM busybox\n"),
		"cart_checkout": single("FROM busybox\n"),
		"login":         single("FROM busybox\n"),
	})

	out, err := execute(NewListCommand(ws.rootOptions("text")), "--filter", "cart_*")
	require.NoError(t, err)
	assert.Contains(t, out, "cart_add (single)")
	assert.Contains(t, out, "cart_checkout (single)")
	assert.NotContains(t, out, "login")
	assert.Contains(t, out, "2 fixture(s)")
}

func TestList_Empty(t *testing.T) {
	ws := newWorkspace(t, nil)

	out, err := execute(NewListCommand(ws.rootOptions("text")))
	require.NoError(t, err)
	assert.Equal(t, "No fixtures found.\n", out)
}

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bfdb/domain/core/entities"
	"bfdb/infrastructure/config"
	"bfdb/pkg/auth"
	pkgerrors "bfdb/pkg/errors"
)

type harness struct {
	t    *testing.T
	path string
}

func newHarness(t *testing.T) *harness {
	t.Setenv("BFDB_CONFIG", "")
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("EVENT_PUBLISHER", config.PublisherLog)
	return &harness{t: t, path: t.TempDir()}
}

// run executes one bfdbctl invocation against the harness's badger store.
func (h *harness) run(args ...string) (string, error) {
	var out bytes.Buffer
	root := New(&out).RootCommand()
	root.SetArgs(append([]string{"--path", h.path, "--org", "org-1"}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func (h *harness) mustRun(args ...string) string {
	out, err := h.run(args...)
	require.NoError(h.t, err, "bfdbctl %s", strings.Join(args, " "))
	return out
}

func (h *harness) item(args ...string) entities.Item {
	var item entities.Item
	require.NoError(h.t, json.Unmarshal([]byte(h.mustRun(args...)), &item))
	return item
}

func (h *harness) items(args ...string) []entities.Item {
	var items []entities.Item
	require.NoError(h.t, json.Unmarshal([]byte(h.mustRun(args...)), &items))
	return items
}

func TestNodeLifecyclePersistsAcrossInvocations(t *testing.T) {
	h := newHarness(t)

	created := h.item("node", "create", "--id", "ada", "--class", "BfPerson", "--props", `{"name":"Ada"}`)
	assert.Equal(t, "ada", created.Metadata.BfGid.String())
	assert.Equal(t, "org-1", created.Metadata.BfOid.String())
	assert.Equal(t, "Ada", created.Props["name"])

	fetched := h.item("node", "get", "ada")
	assert.Equal(t, created.Metadata.SortValue, fetched.Metadata.SortValue)

	updated := h.item("node", "update", "ada", "--props", `{"title":"Countess"}`)
	assert.Equal(t, "Ada", updated.Props["name"])
	assert.Equal(t, "Countess", updated.Props["title"])

	replaced := h.item("node", "update", "ada", "--props", `{"title":"Analyst"}`, "--replace")
	assert.NotContains(t, replaced.Props, "name")

	h.mustRun("node", "delete", "ada")

	_, err := h.run("node", "get", "ada")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestEdgesAndTraversal(t *testing.T) {
	h := newHarness(t)

	h.mustRun("node", "create", "--id", "org", "--class", "BfOrganization")
	h.mustRun("node", "create", "--id", "ada", "--class", "BfPerson")
	h.mustRun("node", "create", "--id", "doc", "--class", "BfDocument")
	h.mustRun("edge", "create", "org", "ada", "--role", "member")
	h.mustRun("edge", "create", "ada", "doc", "--role", "author")

	targets := h.items("targets", "org")
	require.Len(t, targets, 1)
	assert.Equal(t, "ada", targets[0].Metadata.BfGid.String())

	assert.Empty(t, h.items("targets", "org", "--role", "owner"))

	sources := h.items("sources", "doc", "--class", "BfPerson")
	require.Len(t, sources, 1)
	assert.Equal(t, "ada", sources[0].Metadata.BfGid.String())

	descendants := h.items("descendants", "org", "--class", "BfDocument")
	require.Len(t, descendants, 1)
	assert.Equal(t, "doc", descendants[0].Metadata.BfGid.String())

	ancestors := h.items("ancestors", "doc", "--class", "BfOrganization")
	require.Len(t, ancestors, 1)
	assert.Equal(t, "org", ancestors[0].Metadata.BfGid.String())
}

func TestCreateRejectsBadInput(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("node", "create", "--class", "BfPerson", "--props", "not-json")
	assert.ErrorContains(t, err, "--props must be a JSON object")

	_, err = h.run("node", "create", "--props", "{}")
	assert.Error(t, err)

	_, err = h.run("edge", "create", "missing-a", "missing-b")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestViewerRequired(t *testing.T) {
	newHarness(t)

	var out bytes.Buffer
	root := New(&out).RootCommand()
	root.SetArgs([]string{"--backend", config.BackendMemory, "node", "get", "x"})
	err := root.ExecuteContext(context.Background())
	assert.ErrorContains(t, err, "--org is required")
}

func TestTokenIsAcceptedByValidator(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun("--person", "person-1", "token")
	token := strings.TrimSpace(out)

	validator, err := auth.NewJWTValidator(config.DevelopmentJWTSecret, "bfdb")
	require.NoError(t, err)
	claims, err := validator.ValidateToken(token)
	require.NoError(t, err)

	viewer, err := claims.Viewer()
	require.NoError(t, err)
	assert.Equal(t, "org-1", viewer.OrgBfOid.String())
	assert.Equal(t, "person-1", viewer.PersonBfGid.String())
}

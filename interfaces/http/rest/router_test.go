package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bfdb/domain/core/valueobjects"
	"bfdb/infrastructure/config"
	"bfdb/infrastructure/di"
	"bfdb/pkg/auth"
)

type apiItem struct {
	Props    map[string]any `json:"props"`
	Metadata struct {
		BfGid     string `json:"bfGid"`
		BfOid     string `json:"bfOid"`
		ClassName string `json:"className"`
	} `json:"metadata"`
}

type apiList struct {
	Items []apiItem `json:"items"`
	Count int       `json:"count"`
}

type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

type testServer struct {
	t       *testing.T
	handler http.Handler
	token   string
}

func newTestServer(t *testing.T, mutate func(*config.Config)) *testServer {
	t.Helper()

	cfg := config.Defaults()
	cfg.LogLevel = "error"
	cfg.EnableMetrics = true
	if mutate != nil {
		mutate(cfg)
	}

	container, cleanup, err := di.InitializeContainer(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(cleanup)

	gen, err := auth.NewJWTGenerator(cfg.SigningSecret(), cfg.JWTIssuer, time.Hour)
	require.NoError(t, err)
	token, err := gen.GenerateToken(valueobjects.CurrentViewer{OrgBfOid: "org-1", PersonBfGid: "person-1"})
	require.NoError(t, err)

	return &testServer{t: t, handler: NewRouter(container).Setup(), token: token}
}

func (s *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	s.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (s *testServer) createNode(className string, props map[string]any) apiItem {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/v1/nodes", map[string]any{"className": className, "props": props})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[apiItem](s.t, rec)
}

func TestHealthAndReady(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")

	rec = s.do(http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"backend":"memory"`)
}

func TestAuthenticationRequired(t *testing.T) {
	s := newTestServer(t, nil)
	s.token = ""

	rec := s.do(http.MethodGet, "/api/v1/nodes", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", decode[apiError](t, rec).Type)

	s.token = "not-a-jwt"
	rec = s.do(http.MethodGet, "/api/v1/nodes", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRateLimitPerViewer(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) { c.RateLimitPerMinute = 1 })

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/nodes", nil).Code)
	rec := s.do(http.MethodGet, "/api/v1/nodes", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE_LIMIT", decode[apiError](t, rec).Type)
}

func TestNodeLifecycle(t *testing.T) {
	s := newTestServer(t, nil)

	created := s.createNode("BfPerson", map[string]any{"name": "Ada"})
	assert.Equal(t, "BfPerson", created.Metadata.ClassName)
	assert.Equal(t, "org-1", created.Metadata.BfOid)
	id := created.Metadata.BfGid
	require.NotEmpty(t, id)

	rec := s.do(http.MethodGet, "/api/v1/nodes/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Ada", decode[apiItem](t, rec).Props["name"])

	rec = s.do(http.MethodPut, "/api/v1/nodes/"+id, map[string]any{"props": map[string]any{"email": "ada@example.com"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[apiItem](t, rec)
	assert.Equal(t, "Ada", updated.Props["name"], "update merges props")
	assert.Equal(t, "ada@example.com", updated.Props["email"])

	rec = s.do(http.MethodDelete, "/api/v1/nodes/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(http.MethodGet, "/api/v1/nodes/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decode[apiError](t, rec).Type)
}

func TestCreateNodeValidation(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(http.MethodPost, "/api/v1/nodes", map[string]any{"className": "9bad"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION", decode[apiError](t, rec).Type)

	rec = s.do(http.MethodPost, "/api/v1/nodes", map[string]any{"className": "BfPerson", "extra": true})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateNodeDuplicateID(t *testing.T) {
	s := newTestServer(t, nil)

	body := map[string]any{"bfGid": "fixed-id", "className": "BfPerson"}
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/v1/nodes", body).Code)

	rec := s.do(http.MethodPost, "/api/v1/nodes", body)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestListNodesConnection(t *testing.T) {
	s := newTestServer(t, nil)
	for _, name := range []string{"a", "b", "c"} {
		s.createNode("BfPerson", map[string]any{"name": name})
	}
	s.createNode("BfDoc", nil)

	rec := s.do(http.MethodGet, "/api/v1/nodes?class=BfPerson&first=2", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var page struct {
		Edges []struct {
			Cursor string  `json:"cursor"`
			Node   apiItem `json:"node"`
		} `json:"edges"`
		PageInfo struct {
			HasNextPage bool    `json:"hasNextPage"`
			EndCursor   *string `json:"endCursor"`
		} `json:"pageInfo"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Edges, 2)
	assert.True(t, page.PageInfo.HasNextPage)
	require.NotNil(t, page.PageInfo.EndCursor)
	for _, e := range page.Edges {
		assert.Equal(t, "BfPerson", e.Node.Metadata.ClassName)
	}

	rec = s.do(http.MethodGet, "/api/v1/nodes?class=BfPerson&first=2&after="+*page.PageInfo.EndCursor, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Len(t, page.Edges, 1)
	assert.False(t, page.PageInfo.HasNextPage)

	rec = s.do(http.MethodGet, "/api/v1/nodes?prop.name=b", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Edges, 1)
	assert.Equal(t, "b", page.Edges[0].Node.Props["name"])

	rec = s.do(http.MethodGet, "/api/v1/nodes?class=BfPerson&first=0", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Empty(t, page.Edges)
	assert.True(t, page.PageInfo.HasNextPage)

	rec = s.do(http.MethodGet, "/api/v1/nodes?first=-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFiltersAcceptTypedValuesAndEmptyRole(t *testing.T) {
	s := newTestServer(t, nil)
	org := s.createNode("BfOrganization", nil)
	three := s.createNode("BfDoc", map[string]any{"n": 3})
	quoted := s.createNode("BfDoc", map[string]any{"n": "3"})

	for _, target := range []apiItem{three, quoted} {
		rec := s.do(http.MethodPost, "/api/v1/edges", map[string]any{
			"sourceId": org.Metadata.BfGid,
			"targetId": target.Metadata.BfGid,
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}
	rec := s.do(http.MethodPost, "/api/v1/edges", map[string]any{
		"sourceId": three.Metadata.BfGid,
		"targetId": quoted.Metadata.BfGid,
		"role":     "cites",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(http.MethodGet, "/api/v1/nodes/"+org.Metadata.BfGid+"/targets?prop.n=3", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	numeric := decode[apiList](t, rec)
	require.Equal(t, 1, numeric.Count)
	assert.Equal(t, three.Metadata.BfGid, numeric.Items[0].Metadata.BfGid)

	rec = s.do(http.MethodGet, "/api/v1/nodes/"+org.Metadata.BfGid+"/targets?prop.n=%223%22", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	text := decode[apiList](t, rec)
	require.Equal(t, 1, text.Count)
	assert.Equal(t, quoted.Metadata.BfGid, text.Items[0].Metadata.BfGid)

	rec = s.do(http.MethodGet, "/api/v1/nodes/"+quoted.Metadata.BfGid+"/sources?role=", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	unlabeled := decode[apiList](t, rec)
	require.Equal(t, 1, unlabeled.Count)
	assert.Equal(t, org.Metadata.BfGid, unlabeled.Items[0].Metadata.BfGid)

	rec = s.do(http.MethodGet, "/api/v1/nodes/"+quoted.Metadata.BfGid+"/sources", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decode[apiList](t, rec).Count)
}

func TestListNodesByIDs(t *testing.T) {
	s := newTestServer(t, nil)
	a := s.createNode("BfPerson", nil)
	b := s.createNode("BfPerson", nil)
	s.createNode("BfPerson", nil)

	rec := s.do(http.MethodGet, "/api/v1/nodes?ids="+a.Metadata.BfGid+","+b.Metadata.BfGid, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decode[apiList](t, rec).Count)
}

func TestEdgesAndTraversal(t *testing.T) {
	s := newTestServer(t, nil)
	org := s.createNode("BfOrganization", nil)
	person := s.createNode("BfPerson", map[string]any{"name": "Ada"})
	doc := s.createNode("BfDoc", nil)

	rec := s.do(http.MethodPost, "/api/v1/edges", map[string]any{
		"sourceId": org.Metadata.BfGid,
		"targetId": person.Metadata.BfGid,
		"role":     "member",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var edge struct {
		EdgeID    string `json:"edgeId"`
		ClassName string `json:"className"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &edge))
	assert.Equal(t, valueobjects.DefaultEdgeClassName, edge.ClassName)

	rec = s.do(http.MethodPost, "/api/v1/edges", map[string]any{
		"sourceId": person.Metadata.BfGid,
		"targetId": doc.Metadata.BfGid,
		"role":     "author",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(http.MethodGet, "/api/v1/nodes/"+org.Metadata.BfGid+"/targets?role=member", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	targets := decode[apiList](t, rec)
	require.Equal(t, 1, targets.Count)
	assert.Equal(t, person.Metadata.BfGid, targets.Items[0].Metadata.BfGid)

	rec = s.do(http.MethodGet, "/api/v1/nodes/"+org.Metadata.BfGid+"/targets?role=owner", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decode[apiList](t, rec).Count)

	rec = s.do(http.MethodGet, "/api/v1/nodes/"+doc.Metadata.BfGid+"/sources?class=BfPerson", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[apiList](t, rec).Count)

	rec = s.do(http.MethodGet, "/api/v1/nodes/"+org.Metadata.BfGid+"/descendants?class=BfDoc", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	descendants := decode[apiList](t, rec)
	require.Equal(t, 1, descendants.Count)
	assert.Equal(t, doc.Metadata.BfGid, descendants.Items[0].Metadata.BfGid)

	rec = s.do(http.MethodGet, "/api/v1/nodes/"+doc.Metadata.BfGid+"/ancestors?class=BfOrganization", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, decode[apiList](t, rec).Count)

	rec = s.do(http.MethodGet, "/api/v1/nodes/"+doc.Metadata.BfGid+"/ancestors", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "class is required")

	rec = s.do(http.MethodDelete, "/api/v1/edges/"+edge.EdgeID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(http.MethodGet, "/api/v1/nodes/"+org.Metadata.BfGid+"/targets", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decode[apiList](t, rec).Count)
}

func TestCreateEdgeMissingNode(t *testing.T) {
	s := newTestServer(t, nil)
	person := s.createNode("BfPerson", nil)

	rec := s.do(http.MethodPost, "/api/v1/edges", map[string]any{
		"sourceId": person.Metadata.BfGid,
		"targetId": "missing",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	s.createNode("BfPerson", nil)

	rec := s.do(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `bfdb_http_requests_total{method="POST",route="/api/v1/nodes`), body)
	assert.Contains(t, body, `status="201"`)
	assert.Contains(t, body, "bfdb_nodes_created_total 1")
}

func TestMetricsDisabled(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) { c.EnableMetrics = false })
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/metrics", nil).Code)
}

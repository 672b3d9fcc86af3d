package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"bfdb/application/commands"
	"bfdb/application/commands/bus"
	"bfdb/application/connection"
	"bfdb/application/queries"
	querybus "bfdb/application/queries/bus"
	"bfdb/domain/core/entities"
	"bfdb/domain/core/valueobjects"
	"bfdb/pkg/common"
	pkgerrors "bfdb/pkg/errors"
	"bfdb/pkg/utils"
)

// PropFilterPrefix marks query parameters that filter on props, e.g.
// ?prop.name=Ada
const PropFilterPrefix = "prop."

// NodeHandler handles node-related HTTP requests
type NodeHandler struct {
	commandBus *bus.CommandBus
	queryBus   *querybus.QueryBus
	errors     *pkgerrors.ErrorHandler
	logger     *zap.Logger
}

// NewNodeHandler creates a new node handler
func NewNodeHandler(
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	errors *pkgerrors.ErrorHandler,
	logger *zap.Logger,
) *NodeHandler {
	return &NodeHandler{
		commandBus: commandBus,
		queryBus:   queryBus,
		errors:     errors,
		logger:     logger,
	}
}

// CreateNodeRequest represents the request body for creating a node.
// BfGid is optional; one is generated when empty.
type CreateNodeRequest struct {
	BfGid     string             `json:"bfGid,omitempty" validate:"omitempty,max=128"`
	ClassName string             `json:"className" validate:"required,classname"`
	Props     valueobjects.Props `json:"props"`
}

// UpdateNodeRequest represents the request body for updating a node
type UpdateNodeRequest struct {
	Props   valueobjects.Props `json:"props" validate:"required"`
	Replace bool               `json:"replace"`
}

// NodeListResponse wraps an unpaged list of nodes
type NodeListResponse struct {
	Items []entities.Item `json:"items"`
	Count int             `json:"count"`
}

// CreateNode handles POST /nodes
func (h *NodeHandler) CreateNode(w http.ResponseWriter, r *http.Request) {
	viewer, err := viewerFrom(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	var req CreateNodeRequest
	if err := common.ParseJSONBody(w, r, &req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	gid := valueobjects.BfGid(req.BfGid)
	if gid.IsZero() {
		gid = valueobjects.NewBfGid()
	}

	cmd := commands.CreateNodeCommand{
		BfGid:     gid,
		Viewer:    viewer,
		ClassName: req.ClassName,
		Props:     req.Props,
	}
	if err := h.commandBus.Send(r.Context(), cmd); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	h.respondNode(w, r, http.StatusCreated, viewer, gid)
}

// GetNode handles GET /nodes/{nodeID}
func (h *NodeHandler) GetNode(w http.ResponseWriter, r *http.Request) {
	viewer, err := viewerFrom(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondNode(w, r, http.StatusOK, viewer, nodeID(r))
}

// UpdateNode handles PUT /nodes/{nodeID}
func (h *NodeHandler) UpdateNode(w http.ResponseWriter, r *http.Request) {
	viewer, err := viewerFrom(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	var req UpdateNodeRequest
	if err := common.ParseJSONBody(w, r, &req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	gid := nodeID(r)
	cmd := commands.UpdateNodeCommand{
		BfGid:   gid,
		Viewer:  viewer,
		Props:   req.Props,
		Replace: req.Replace,
	}
	if err := h.commandBus.Send(r.Context(), cmd); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	h.respondNode(w, r, http.StatusOK, viewer, gid)
}

// DeleteNode handles DELETE /nodes/{nodeID}. ?cascade=true also removes
// targets left without incoming edges.
func (h *NodeHandler) DeleteNode(w http.ResponseWriter, r *http.Request) {
	viewer, err := viewerFrom(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	cmd := commands.DeleteNodeCommand{
		BfGid:   nodeID(r),
		Viewer:  viewer,
		Cascade: common.BoolParam(r, "cascade"),
	}
	if err := h.commandBus.Send(r.Context(), cmd); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	h.logger.Debug("Node deleted via API",
		zap.String("bfGid", cmd.BfGid.String()),
		zap.Bool("cascade", cmd.Cascade),
	)
	w.WriteHeader(http.StatusNoContent)
}

// ListNodes handles GET /nodes. With ?ids=a,b the named nodes are returned
// unpaged; otherwise the result is a cursor connection.
func (h *NodeHandler) ListNodes(w http.ResponseWriter, r *http.Request) {
	viewer, err := viewerFrom(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	className := r.URL.Query().Get("class")
	props := propFilters(r)

	if ids := splitList(r.URL.Query().Get("ids")); len(ids) > 0 {
		gids := make([]valueobjects.BfGid, len(ids))
		for i, id := range ids {
			gids[i] = valueobjects.BfGid(id)
		}
		result, err := h.queryBus.Ask(r.Context(), queries.QueryNodesQuery{
			Viewer:    viewer,
			ClassName: className,
			Props:     props,
			BfGids:    gids,
		})
		if err != nil {
			h.errors.Handle(w, r, err)
			return
		}
		common.RespondJSON(w, http.StatusOK, toListResponse(result.([]*entities.Node)))
		return
	}

	args, err := common.ExtractConnectionArgs(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	result, err := h.queryBus.Ask(r.Context(), queries.NodeConnectionQuery{
		Viewer:    viewer,
		ClassName: className,
		Props:     props,
		Args:      args,
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	conn := result.(*connection.Connection[*entities.Node])
	common.RespondJSON(w, http.StatusOK, connection.Map(conn, (*entities.Node).ToItem))
}

// ListTargets handles GET /nodes/{nodeID}/targets
func (h *NodeHandler) ListTargets(w http.ResponseWriter, r *http.Request) {
	viewer, err := viewerFrom(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	h.respondList(w, r, queries.QueryTargetInstancesQuery{
		Viewer:          viewer,
		SourceID:        nodeID(r),
		TargetClassName: r.URL.Query().Get("class"),
		NodeProps:       propFilters(r),
		EdgeProps:       roleFilter(r),
	})
}

// ListSources handles GET /nodes/{nodeID}/sources
func (h *NodeHandler) ListSources(w http.ResponseWriter, r *http.Request) {
	viewer, err := viewerFrom(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	h.respondList(w, r, queries.QuerySourceInstancesQuery{
		Viewer:          viewer,
		TargetID:        nodeID(r),
		SourceClassName: r.URL.Query().Get("class"),
		NodeProps:       propFilters(r),
		EdgeProps:       roleFilter(r),
	})
}

// ListAncestors handles GET /nodes/{nodeID}/ancestors?class=&depth=
func (h *NodeHandler) ListAncestors(w http.ResponseWriter, r *http.Request) {
	viewer, err := viewerFrom(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	depth, err := common.IntParam(r, "depth", 0)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	h.respondList(w, r, queries.QueryAncestorsQuery{
		Viewer:    viewer,
		BfGid:     nodeID(r),
		ClassName: r.URL.Query().Get("class"),
		Depth:     depth,
	})
}

// ListDescendants handles GET /nodes/{nodeID}/descendants?class=&depth=
func (h *NodeHandler) ListDescendants(w http.ResponseWriter, r *http.Request) {
	viewer, err := viewerFrom(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	depth, err := common.IntParam(r, "depth", 0)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	h.respondList(w, r, queries.QueryDescendantsQuery{
		Viewer:    viewer,
		BfGid:     nodeID(r),
		ClassName: r.URL.Query().Get("class"),
		Depth:     depth,
	})
}

func (h *NodeHandler) respondNode(w http.ResponseWriter, r *http.Request, status int, viewer valueobjects.CurrentViewer, gid valueobjects.BfGid) {
	result, err := h.queryBus.Ask(r.Context(), queries.GetNodeQuery{Viewer: viewer, BfGid: gid})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, status, result.(*entities.Node).ToItem())
}

func (h *NodeHandler) respondList(w http.ResponseWriter, r *http.Request, query querybus.Query) {
	result, err := h.queryBus.Ask(r.Context(), query)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, toListResponse(result.([]*entities.Node)))
}

func toListResponse(nodes []*entities.Node) NodeListResponse {
	items := make([]entities.Item, len(nodes))
	for i, n := range nodes {
		items[i] = n.ToItem()
	}
	return NodeListResponse{Items: items, Count: len(items)}
}

func viewerFrom(r *http.Request) (valueobjects.CurrentViewer, error) {
	viewer, ok := common.GetViewer(r.Context())
	if !ok {
		return valueobjects.CurrentViewer{}, pkgerrors.NewUnauthorizedError("no viewer on request")
	}
	return viewer, nil
}

func nodeID(r *http.Request) valueobjects.BfGid {
	return valueobjects.BfGid(chi.URLParam(r, "nodeID"))
}

// propFilters collects prop.<key>=value parameters. A value that reads as
// a JSON number, boolean, null or quoted string filters on that value;
// anything else is matched as a plain string, so ?prop.n=3 matches the
// number 3 and ?prop.n="3" the string "3".
func propFilters(r *http.Request) valueobjects.Props {
	var props valueobjects.Props
	for key, values := range r.URL.Query() {
		if !strings.HasPrefix(key, PropFilterPrefix) || len(values) == 0 {
			continue
		}
		if props == nil {
			props = valueobjects.Props{}
		}
		props[strings.TrimPrefix(key, PropFilterPrefix)] = filterValue(values[0])
	}
	return props
}

func filterValue(raw string) interface{} {
	var v interface{}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	switch v.(type) {
	case map[string]interface{}, []interface{}:
		return raw
	}
	return v
}

// roleFilter selects edges by role. An empty role= selects unlabeled edges.
func roleFilter(r *http.Request) valueobjects.Props {
	q := r.URL.Query()
	if !q.Has("role") {
		return nil
	}
	return valueobjects.Props{entities.RoleKey: q.Get("role")}
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

package errors

// Machine-readable codes attached to AppErrors so clients can branch on
// them without parsing messages.
const (
	CodeNodeNotFound      = "BF_NODE_NOT_FOUND"
	CodeEdgeNotFound      = "BF_EDGE_NOT_FOUND"
	CodeInvalidViewer     = "BF_INVALID_VIEWER"
	CodeInvalidClassName  = "BF_INVALID_CLASS_NAME"
	CodeInvalidProps      = "BF_INVALID_PROPS"
	CodeInvalidCursor     = "BF_INVALID_CURSOR"
	CodeCrossOrgEdge      = "BF_CROSS_ORG_EDGE"
	CodeNotImplemented    = "BF_NOT_IMPLEMENTED"
	CodeBackendClosed     = "BF_BACKEND_CLOSED"
	CodeCircuitOpen       = "BF_CIRCUIT_OPEN"
	CodeInvalidRequest    = "BF_INVALID_REQUEST"
	CodeInvalidToken      = "BF_INVALID_TOKEN"
	CodeUnknownCommand    = "BF_UNKNOWN_COMMAND"
	CodeUnknownQuery      = "BF_UNKNOWN_QUERY"
	CodeUnsupportedOption = "BF_UNSUPPORTED_OPTION"
)

// NewEdgeNotFoundError reports an edge id that does not resolve to an edge.
func NewEdgeNotFoundError(bfGid string) *AppError {
	return NewNotFoundError("edge " + bfGid).
		WithCode(CodeEdgeNotFound).
		WithDetails(map[string]interface{}{"bfGid": bfGid})
}

// NewInvalidCursorError reports a connection cursor that cannot be decoded.
func NewInvalidCursorError(cursor string) *AppError {
	return NewValidationError("invalid cursor").
		WithCode(CodeInvalidCursor).
		WithDetails(map[string]interface{}{"cursor": cursor})
}

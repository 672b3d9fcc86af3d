package common

import (
	"net/http"
	"strconv"

	"bfdb/application/connection"
	pkgerrors "bfdb/pkg/errors"
)

// MaxPageSize caps first and last
const MaxPageSize = 100

// ExtractConnectionArgs reads first, last, after and before from the query
// string. Missing parameters stay nil.
func ExtractConnectionArgs(r *http.Request) (connection.Args, error) {
	var args connection.Args
	q := r.URL.Query()

	var err error
	if args.First, err = pageSize(q.Get("first"), "first"); err != nil {
		return connection.Args{}, err
	}
	if args.Last, err = pageSize(q.Get("last"), "last"); err != nil {
		return connection.Args{}, err
	}
	if v := q.Get("after"); v != "" {
		args.After = &v
	}
	if v := q.Get("before"); v != "" {
		args.Before = &v
	}
	return args, nil
}

func pageSize(raw, name string) (*int, error) {
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return nil, pkgerrors.NewValidationError(name + " must be a non-negative integer").
			WithCode(pkgerrors.CodeInvalidRequest)
	}
	if n > MaxPageSize {
		n = MaxPageSize
	}
	return &n, nil
}

// IntParam reads an optional integer query parameter, returning def when
// it is absent
func IntParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, pkgerrors.NewValidationError(name + " must be an integer").
			WithCode(pkgerrors.CodeInvalidRequest)
	}
	return n, nil
}

// BoolParam reads an optional boolean query parameter
func BoolParam(r *http.Request, name string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return v
}

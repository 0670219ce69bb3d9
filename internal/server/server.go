package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	eventbus "github.com/hanpama/contentgraph/internal/eventbus"
	events "github.com/hanpama/contentgraph/internal/events"
	executor "github.com/hanpama/contentgraph/internal/executor"
	language "github.com/hanpama/contentgraph/internal/language"
	reqid "github.com/hanpama/contentgraph/internal/reqid"
	schema "github.com/hanpama/contentgraph/internal/schema"
	viewer "github.com/hanpama/contentgraph/internal/viewer"
)

// Handler is an http.Handler that serves a GraphQL endpoint.
// It parses requests, validates them against the schema, builds the viewer,
// runs the executor and formats responses.
type Handler struct {
	exec *executor.Executor
	opt  Options
}

type Options struct {
	// Timeout sets a default timeout if the incoming request context has none.
	// 0 means no default timeout.
	Timeout time.Duration

	// Pretty enables indented JSON responses (useful for dev).
	Pretty bool

	// MaxBodyBytes limits the size of the request body. 0 means unlimited.
	MaxBodyBytes int64

	// GraphiQL enables the in-browser IDE when true.
	GraphiQL bool

	// Identity resolves the caller of each request. Nil means every request
	// is anonymous.
	Identity viewer.IdentitySource

	// Bus receives GraphQLStart and GraphQLFinish events.
	Bus *eventbus.Bus
}

type Option func(*Options)

func WithTimeout(d time.Duration) Option            { return func(o *Options) { o.Timeout = d } }
func WithPretty() Option                            { return func(o *Options) { o.Pretty = true } }
func WithMaxBodyBytes(n int64) Option               { return func(o *Options) { o.MaxBodyBytes = n } }
func WithGraphiQL(enable bool) Option               { return func(o *Options) { o.GraphiQL = enable } }
func WithIdentity(src viewer.IdentitySource) Option { return func(o *Options) { o.Identity = src } }
func WithEventBus(bus *eventbus.Bus) Option         { return func(o *Options) { o.Bus = bus } }

// New creates a GraphQL HTTP handler.
func New(runtime executor.Runtime, schema *schema.Schema, opts ...Option) (*Handler, error) {
	if schema == nil || schema.AST == nil {
		return nil, fmt.Errorf("server: schema must be built from SDL")
	}
	exec := executor.NewExecutor(runtime, schema)
	op := Options{Timeout: 10 * time.Second, GraphiQL: true}
	for _, f := range opts {
		f(&op)
	}
	return &Handler{exec: exec, opt: op}, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := ctx.Deadline(); !ok && h.opt.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opt.Timeout)
		defer cancel()
	}
	if _, ok := reqid.FromContext(ctx); !ok {
		var rid string
		ctx, rid = reqid.FromRequest(r.WithContext(ctx))
		w.Header().Set(reqid.Header, rid)
	}
	ctx = viewer.NewContext(ctx, viewer.Build(r, h.opt.Identity))

	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET, POST")
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse("method not allowed"), h.opt.Pretty)
		return
	}

	// Serve GraphiQL IDE when enabled and the client expects HTML.
	if r.Method == http.MethodGet && h.opt.GraphiQL && acceptsHTML(r.Header.Get("Accept")) && r.URL.Query().Get("query") == "" {
		serveGraphiQL(w, r.URL.Path)
		return
	}

	req, batch, berr := parseRequest(r, h.opt.MaxBodyBytes)
	if berr != "" {
		status := http.StatusBadRequest
		if berr == errBodyTooLargeMessage {
			status = http.StatusRequestEntityTooLarge
		}
		writeJSON(w, status, errorResponse(berr), h.opt.Pretty)
		return
	}

	if batch != nil {
		out := make([]any, len(batch))
		for i := range batch {
			out[i], _ = h.executeOne(ctx, batch[i], r.Method)
		}
		writeJSON(w, http.StatusOK, out, h.opt.Pretty)
		return
	}

	res, status := h.executeOne(ctx, req, r.Method)
	writeJSON(w, status, res, h.opt.Pretty)
}

func (h *Handler) executeOne(ctx context.Context, req GraphQLRequest, method string) (any, int) {
	doc, errs := language.LoadQuery(h.exec.Schema().AST, req.Query)
	if len(errs) > 0 {
		return requestErrors(errs), http.StatusOK
	}

	opDef := doc.Operations.ForName(req.OperationName)
	opType := ""
	if opDef != nil {
		opType = string(opDef.Operation)
	}
	if method == http.MethodGet && opDef != nil && opDef.Operation == language.Mutation {
		return errorResponse("mutations are only accepted over POST"), http.StatusMethodNotAllowed
	}

	start := time.Now()
	eventbus.Publish(ctx, h.opt.Bus, events.GraphQLStart{Query: req.Query, OperationName: req.OperationName, OperationType: opType})
	result := h.exec.ExecuteRequest(ctx, doc, req.OperationName, req.Variables, nil)
	errList := make([]error, len(result.Errors))
	for i := range result.Errors {
		errList[i] = result.Errors[i]
	}
	eventbus.Publish(ctx, h.opt.Bus, events.GraphQLFinish{
		Query:         req.Query,
		OperationName: req.OperationName,
		OperationType: opType,
		Errors:        errList,
		Duration:      time.Since(start),
	})
	return toSpecResult(result), http.StatusOK
}

// ------------------ Request parsing ------------------

type GraphQLRequest struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
	Extensions    map[string]any `json:"extensions,omitempty"`
}

// parseRequest returns either a single request or a batch. A non-empty
// string is a request error message.
func parseRequest(r *http.Request, maxBody int64) (GraphQLRequest, []GraphQLRequest, string) {
	if r.Method == http.MethodGet {
		q := r.URL.Query().Get("query")
		if q == "" {
			return GraphQLRequest{}, nil, "missing 'query'"
		}
		vars := map[string]any{}
		if v := r.URL.Query().Get("variables"); v != "" {
			if err := json.Unmarshal([]byte(v), &vars); err != nil {
				return GraphQLRequest{}, nil, "invalid 'variables' JSON"
			}
		}
		op := r.URL.Query().Get("operationName")
		return GraphQLRequest{Query: q, Variables: vars, OperationName: op}, nil, ""
	}

	// POST
	ct := r.Header.Get("Content-Type")
	if ct != "" && ct != "application/json" && !strings.HasPrefix(ct, "application/json;") {
		return GraphQLRequest{}, nil, "unsupported Content-Type"
	}
	reader := io.Reader(r.Body)
	if maxBody > 0 {
		reader = io.LimitReader(r.Body, maxBody+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return GraphQLRequest{}, nil, "failed to read body"
	}
	defer r.Body.Close()
	if maxBody > 0 && int64(len(body)) > maxBody {
		return GraphQLRequest{}, nil, errBodyTooLargeMessage
	}

	// Try array (batch)
	if len(body) > 0 && body[0] == '[' {
		var arr []GraphQLRequest
		if err := json.Unmarshal(body, &arr); err != nil {
			return GraphQLRequest{}, nil, "invalid JSON"
		}
		if len(arr) == 0 {
			return GraphQLRequest{}, nil, "empty batch"
		}
		return GraphQLRequest{}, arr, ""
	}
	var req GraphQLRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return GraphQLRequest{}, nil, "invalid JSON"
	}
	if req.Query == "" {
		return GraphQLRequest{}, nil, "missing 'query'"
	}
	if req.Variables == nil {
		req.Variables = map[string]any{}
	}
	return req, nil, ""
}

// ------------------ Response formatting ------------------

type specLocation struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

type specError struct {
	Message    string         `json:"message"`
	Locations  []specLocation `json:"locations,omitempty"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

type specResult struct {
	Data   any         `json:"data"`
	Errors []specError `json:"errors,omitempty"`
}

// specErrors is a response for requests that never reached execution; it
// carries no data entry.
type specErrors struct {
	Errors []specError `json:"errors"`
}

func errorResponse(msg string) specErrors {
	return specErrors{Errors: []specError{{Message: msg}}}
}

func requestErrors(errs language.ErrorList) specErrors {
	out := specErrors{Errors: make([]specError, len(errs))}
	for i, e := range errs {
		se := specError{Message: e.Message, Extensions: e.Extensions}
		for _, loc := range e.Locations {
			se.Locations = append(se.Locations, specLocation{Line: loc.Line, Column: loc.Column})
		}
		out.Errors[i] = se
	}
	return out
}

func toSpecResult(res *executor.ExecutionResult) specResult {
	out := specResult{Data: res.Data}
	if len(res.Errors) == 0 {
		return out
	}
	out.Errors = make([]specError, len(res.Errors))
	for i, e := range res.Errors {
		se := specError{Message: e.Message, Extensions: e.Extensions}
		if len(e.Path) > 0 {
			se.Path = make([]any, len(e.Path))
			for j, pe := range e.Path {
				switch v := pe.(type) {
				case string:
					se.Path[j] = v
				case int:
					se.Path[j] = v
				default:
					se.Path[j] = toString(v)
				}
			}
		}
		out.Errors[i] = se
	}
	// partial data is preserved next to the errors
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any, pretty bool) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	_ = enc.Encode(v)
}

func toString(v any) string { b, _ := json.Marshal(v); return string(b) }

const errBodyTooLargeMessage = "body too large"

func acceptsHTML(accept string) bool {
	if accept == "" {
		return false
	}
	for _, p := range strings.Split(accept, ",") {
		p = strings.TrimSpace(p)
		if strings.HasPrefix(p, "text/html") {
			return true
		}
	}
	return false
}

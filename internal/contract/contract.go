// Package contract holds the OpenAPI description of the agent API and validates
// requests and responses against it.
package contract

import (
	"context"
	_ "embed"
	"fmt"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
)

//go:embed openapi.yaml
var document []byte

// Document returns the raw OpenAPI document.
func Document() []byte {
	return document
}

// Contract validates HTTP traffic against the agent API description.
type Contract struct {
	doc    *openapi3.T
	router routers.Router
}

// Load parses and validates the embedded document.
func Load(ctx context.Context) (*Contract, error) {
	loader := openapi3.NewLoader()
	loader.Context = ctx
	doc, err := loader.LoadFromData(document)
	if err != nil {
		return nil, fmt.Errorf("loading agent API document: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("validating agent API document: %w", err)
	}
	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("building router: %w", err)
	}
	return &Contract{doc: doc, router: router}, nil
}

// Version is the API version declared by the document.
func (c *Contract) Version() string {
	return c.doc.Info.Version
}

// ViolationError reports traffic that does not match the document.
type ViolationError struct {
	Method string
	Path   string
	Err    error
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("%s %s violates the agent API: %v", e.Method, e.Path, e.Err)
}

func (e *ViolationError) Unwrap() error { return e.Err }

func (c *Contract) route(req *http.Request) (*openapi3filter.RequestValidationInput, error) {
	route, params, err := c.router.FindRoute(req)
	if err != nil {
		return nil, &ViolationError{Method: req.Method, Path: req.URL.Path, Err: err}
	}
	return &openapi3filter.RequestValidationInput{Request: req, PathParams: params, Route: route}, nil
}

// ValidateRequest checks req against its operation. The body is restored so
// handlers can still read it.
func (c *Contract) ValidateRequest(ctx context.Context, req *http.Request) error {
	input, err := c.route(req)
	if err != nil {
		return err
	}
	if err := openapi3filter.ValidateRequest(ctx, input); err != nil {
		return &ViolationError{Method: req.Method, Path: req.URL.Path, Err: err}
	}
	return nil
}

// ValidateResponse checks a received response against the operation req was sent to.
// A 2xx status the operation does not declare is checked against its 200 response.
// Other undeclared statuses are violations.
func (c *Contract) ValidateResponse(ctx context.Context, req *http.Request, status int, header http.Header, body []byte) error {
	reqInput, err := c.route(req)
	if err != nil {
		return err
	}
	if status/100 == 2 && !declares(reqInput.Route.Operation, status) {
		status = http.StatusOK
	}
	input := &openapi3filter.ResponseValidationInput{
		RequestValidationInput: reqInput,
		Status:                 status,
		Header:                 header,
		Options:                &openapi3filter.Options{IncludeResponseStatus: true},
	}
	input.SetBodyBytes(body)
	if err := openapi3filter.ValidateResponse(ctx, input); err != nil {
		return &ViolationError{Method: req.Method, Path: req.URL.Path, Err: err}
	}
	return nil
}

func declares(op *openapi3.Operation, status int) bool {
	return op != nil && op.Responses != nil && op.Responses.Status(status) != nil
}

// Package docs publishes the OpenAPI description of the HTTP API.
package docs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/MoAftaab/crm-xeno/backend/auth"
	"github.com/MoAftaab/crm-xeno/backend/handlers"
	"github.com/MoAftaab/crm-xeno/backend/services"
	"github.com/MoAftaab/crm-xeno/backend/utils"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/invopop/jsonschema"
	"go.uber.org/zap"
)

const (
	openAPIVersion = "3.0.3"
	bearerScheme   = "bearerAuth"
	jsonMediaType  = "application/json"
)

// Build assembles the document. baseURL is published as the only server.
func Build(baseURL, version string) (*openapi3.T, error) {
	b := &builder{}

	errorSchema := b.schemaOf(utils.ErrorResponse{})
	healthSchema := b.schemaOf(handlers.HealthResponse{})
	bearer := openapi3.NewSecurityRequirements().With(openapi3.NewSecurityRequirement().Authenticate(bearerScheme))

	login := operation("loginWithGoogle", "Exchange a Google identity token for a session token", "auth")
	login.RequestBody = &openapi3.RequestBodyRef{
		Value: openapi3.NewRequestBody().WithRequired(true).WithJSONSchema(b.schemaOf(auth.LoginRequest{})),
	}
	setJSON(login.Responses, "200", "Session issued", b.schemaOf(services.LoginResult{}))
	setJSON(login.Responses, "400", "Error", errorSchema)
	setJSON(login.Responses, "401", "Not authenticated", errorSchema)
	setJSON(login.Responses, "500", "Error", errorSchema)

	me := operation("getCurrentUser", "Current user", "auth")
	me.Security = bearer
	setJSON(me.Responses, "200", "Authenticated user", b.schemaOf(auth.MeResponse{}))
	setJSON(me.Responses, "401", "Not authenticated", errorSchema)

	logout := operation("logout", "Revoke the presented session token", "auth")
	logout.Security = bearer
	logout.Responses.Set("204", &openapi3.ResponseRef{Value: openapi3.NewResponse().WithDescription("Signed out")})
	setJSON(logout.Responses, "401", "Not authenticated", errorSchema)
	setJSON(logout.Responses, "500", "Error", errorSchema)

	health := operation("health", "Liveness", "health")
	setJSON(health.Responses, "200", "Serving", healthSchema)

	ready := operation("ready", "Readiness of configured backends", "health")
	setJSON(ready.Responses, "200", "Ready", healthSchema)
	setJSON(ready.Responses, "503", "Not ready", healthSchema)

	if b.err != nil {
		return nil, b.err
	}

	paths := openapi3.NewPaths()
	paths.Set("/api/auth/google", &openapi3.PathItem{Post: login})
	paths.Set("/api/auth/me", &openapi3.PathItem{Get: me})
	paths.Set("/api/auth/logout", &openapi3.PathItem{Post: logout})
	paths.Set("/healthz", &openapi3.PathItem{Get: health})
	paths.Set("/readyz", &openapi3.PathItem{Get: ready})

	return &openapi3.T{
		OpenAPI: openAPIVersion,
		Info: &openapi3.Info{
			Title:       "CRM API",
			Version:     version,
			Description: "Google sign-in and session endpoints. Authenticated routes expect `Authorization: Bearer <token>`.",
		},
		Servers: openapi3.Servers{{URL: baseURL}},
		Paths:   paths,
		Components: &openapi3.Components{
			SecuritySchemes: openapi3.SecuritySchemes{
				bearerScheme: &openapi3.SecuritySchemeRef{Value: openapi3.NewJWTSecurityScheme()},
			},
		},
	}, nil
}

func operation(id, summary, tag string) *openapi3.Operation {
	op := openapi3.NewOperation()
	op.OperationID = id
	op.Summary = summary
	op.Tags = []string{tag}
	op.Responses = openapi3.NewResponsesWithCapacity(4)
	return op
}

func setJSON(responses *openapi3.Responses, status, description string, schema *openapi3.Schema) {
	responses.Set(status, &openapi3.ResponseRef{
		Value: openapi3.NewResponse().WithDescription(description).WithJSONSchema(schema),
	})
}

// builder converts reflected JSON Schemas and keeps the first failure
type builder struct {
	err error
}

// schemaOf inlines the schema of v without JSON Schema draft metadata,
// which OpenAPI 3.0 does not accept.
func (b *builder) schemaOf(v any) *openapi3.Schema {
	r := &jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	reflected := r.Reflect(v)
	reflected.Version = ""
	reflected.ID = ""

	schema := openapi3.NewSchema()
	raw, err := json.Marshal(reflected)
	if err == nil {
		err = json.Unmarshal(raw, schema)
	}
	if err != nil && b.err == nil {
		b.err = fmt.Errorf("schema for %T: %w", v, err)
	}
	return schema
}

// Publisher serves the rendered document
type Publisher struct {
	body   []byte
	logger *zap.Logger
}

// NewPublisher builds, validates and renders the document once for baseURL
func NewPublisher(ctx context.Context, baseURL, version string, logger *zap.Logger) (*Publisher, error) {
	doc, err := Build(baseURL, version)
	if err != nil {
		return nil, fmt.Errorf("failed to build openapi document: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("invalid openapi document: %w", err)
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to render openapi document: %w", err)
	}
	return &Publisher{body: body, logger: logger}, nil
}

// HandleOpenAPI handles GET /api-docs/openapi.json
func (p *Publisher) HandleOpenAPI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", jsonMediaType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(p.body); err != nil {
		p.logger.Error("failed to write openapi document", zap.Error(err))
	}
}

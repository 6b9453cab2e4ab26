// Package docs holds the OpenAPI description served at /swagger, written in
// swag's template format. The handler annotations describe the same
// operations; keep both in step when a route or body changes.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "paths": {
        "/ingest": {
            "post": {
                "tags": ["Ingestion"],
                "summary": "Ingest a batch of reviews",
                "operationId": "ingestReviews",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "name": "Idempotency-Key", "in": "header"},
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/services.IngestBatch"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/services.IngestResult"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "409": {"description": "Source metadata conflict", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "413": {"description": "Body too large", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/analyze": {
            "post": {
                "tags": ["Ingestion"],
                "summary": "Classify a text",
                "operationId": "analyzeText",
                "parameters": [{"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.AnalyzeRequest"}}],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}}
            }
        },
        "/insights": {
            "get": {
                "tags": ["Insights"],
                "summary": "Review analytics",
                "operationId": "getInsights",
                "parameters": [
                    {"type": "integer", "name": "page", "in": "query", "minimum": 1},
                    {"type": "integer", "name": "page_size", "in": "query", "minimum": 1, "maximum": 100},
                    {"type": "string", "format": "date", "name": "start_date", "in": "query"},
                    {"type": "string", "format": "date", "name": "end_date", "in": "query"},
                    {"type": "string", "format": "uuid", "name": "source_id", "in": "query"},
                    {"type": "string", "name": "competitor_id", "in": "query"},
                    {"enum": ["Positive", "Neutral", "Negative"], "type": "string", "name": "sentiment", "in": "query"},
                    {"type": "string", "name": "If-None-Match", "in": "header"}
                ],
                "responses": {"200": {"description": "OK"}, "304": {"description": "Not Modified"}, "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}}
            }
        },
        "/sources": {
            "get": {"tags": ["Insights"], "summary": "List sources", "operationId": "listSources", "responses": {"200": {"description": "OK"}}}
        },
        "/competitors": {
            "get": {"tags": ["Competitors"], "summary": "List competitors", "operationId": "listCompetitors", "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["Competitors"], "summary": "Create a competitor", "operationId": "createCompetitor", "responses": {"201": {"description": "Created"}, "409": {"description": "Name already used", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}}}
        },
        "/competitors/{id}": {
            "get": {"tags": ["Competitors"], "summary": "Get a competitor", "operationId": "getCompetitor", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}},
            "patch": {"tags": ["Competitors"], "summary": "Update a competitor", "operationId": "updateCompetitor", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}, "409": {"description": "Name already used"}}},
            "delete": {"tags": ["Competitors"], "summary": "Delete a competitor", "operationId": "deleteCompetitor", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"204": {"description": "No Content"}, "404": {"description": "Not found"}}}
        },
        "/competitors/{id}/comparison": {
            "get": {"tags": ["Competitors"], "summary": "Compare a competitor with the own product", "operationId": "compareCompetitor", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}}
        },
        "/digest/run": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["Digests"], "summary": "Generate a digest", "operationId": "runDigest", "responses": {"200": {"description": "OK"}, "401": {"description": "Missing or wrong token"}}}
        },
        "/digests": {
            "get": {"tags": ["Digests"], "summary": "Digest history", "operationId": "listDigests", "responses": {"200": {"description": "OK"}}}
        },
        "/digests/{id}": {
            "get": {"tags": ["Digests"], "summary": "Get a digest", "operationId": "getDigest", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}}
        }
    },
    "definitions": {
        "handlers.AnalyzeRequest": {
            "type": "object",
            "required": ["text"],
            "properties": {
                "text": {"type": "string", "example": "The new dashboard is great but exports are slow."},
                "language": {"type": "string", "example": "en"}
            }
        },
        "services.SourceMetadata": {
            "type": "object",
            "properties": {
                "external_id": {"type": "string", "example": "com.example.app"},
                "name": {"type": "string", "example": "App Store"},
                "platform": {"type": "string", "example": "ios"},
                "url": {"type": "string", "example": "https://apps.apple.com/app/id123"}
            }
        },
        "services.IngestItem": {
            "type": "object",
            "required": ["source_review_id", "body", "published_at"],
            "properties": {
                "source_review_id": {"type": "string", "example": "rev-1001"},
                "title": {"type": "string", "example": "Great dashboards"},
                "body": {"type": "string", "example": "Love the sentiment chart and fast insights!"},
                "rating": {"type": "number", "minimum": 0, "maximum": 5, "example": 4.5},
                "author_name": {"type": "string"},
                "language": {"type": "string", "example": "en"},
                "location": {"type": "string", "example": "US"},
                "published_at": {"type": "string", "format": "date-time", "example": "2024-05-01T10:30:00Z"}
            }
        },
        "services.IngestBatch": {
            "type": "object",
            "required": ["source_id", "reviews"],
            "properties": {
                "source_id": {"type": "string", "format": "uuid", "example": "2f1c7c52-4c0e-4a77-9f77-2c8f1f3a9d10"},
                "competitor_id": {"type": "string", "format": "uuid"},
                "overwrite_source_metadata": {"type": "boolean"},
                "source_metadata": {"$ref": "#/definitions/services.SourceMetadata"},
                "reviews": {"type": "array", "minItems": 1, "items": {"$ref": "#/definitions/services.IngestItem"}}
            }
        },
        "services.IngestResult": {
            "type": "object",
            "properties": {
                "ingested_count": {"type": "integer", "example": 1},
                "duplicate_count": {"type": "integer", "example": 0},
                "review_ids": {"type": "array", "items": {"type": "string"}},
                "message": {"type": "string", "example": "Reviews accepted for processing."}
            }
        },
        "handlers.ErrorResponse": {
            "type": "object",
            "properties": {
                "request_id": {"type": "string"},
                "error": {"type": "string", "example": "not_found"},
                "message": {"type": "string"},
                "details": {"type": "array", "items": {"$ref": "#/definitions/services.FieldIssue"}}
            }
        },
        "services.FieldIssue": {
            "type": "object",
            "properties": {
                "field": {"type": "string", "example": "reviews.0.body"},
                "issue": {"type": "string", "example": "is required"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Customer Voice API",
	Description:      "Review ingestion, sentiment and topic analytics, competitor comparison and digests.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}

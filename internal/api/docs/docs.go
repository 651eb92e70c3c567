// Package docs holds the OpenAPI document served under /swagger/.
// Regenerate with: swag init -g cmd/feax-api/main.go -o internal/api/docs
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
    "paths": {
        "/extractions": {
            "get": {
                "produces": ["application/json"],
                "tags": ["extractions"],
                "summary": "List extraction runs",
                "responses": {
                    "200": {"description": "Runs, newest first", "schema": {"type": "array", "items": {"$ref": "#/definitions/store.Run"}}},
                    "500": {"description": "Internal server error"}
                }
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["extractions"],
                "summary": "Start an extraction run",
                "parameters": [
                    {"description": "Run configuration", "name": "run", "in": "body", "required": true, "schema": {"$ref": "#/definitions/model.RunSpec"}}
                ],
                "responses": {
                    "202": {"description": "Run accepted", "schema": {"$ref": "#/definitions/handler.RunAccepted"}},
                    "400": {"description": "Invalid run configuration"},
                    "500": {"description": "Internal server error"}
                }
            }
        },
        "/extractions/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["extractions"],
                "summary": "Get an extraction run",
                "parameters": [{"type": "string", "description": "Run ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "Run details", "schema": {"$ref": "#/definitions/store.Run"}},
                    "404": {"description": "Run not found"}
                }
            },
            "delete": {
                "tags": ["extractions"],
                "summary": "Delete an extraction run",
                "parameters": [{"type": "string", "description": "Run ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "204": {"description": "Deleted"},
                    "404": {"description": "Run not found"},
                    "409": {"description": "Run still active"}
                }
            }
        },
        "/extractions/{id}/errors": {
            "get": {
                "produces": ["application/json"],
                "tags": ["extractions"],
                "summary": "List warnings and failures of a run",
                "parameters": [{"type": "string", "description": "Run ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "Run errors", "schema": {"type": "object"}},
                    "404": {"description": "Run not found"}
                }
            }
        },
        "/extractions/{id}/outputs": {
            "get": {
                "produces": ["application/json"],
                "tags": ["extractions"],
                "summary": "List files written by a run",
                "parameters": [{"type": "string", "description": "Run ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "Run outputs", "schema": {"type": "object"}},
                    "404": {"description": "Run not found"}
                }
            }
        },
        "/extractions/{id}/series": {
            "get": {
                "produces": ["application/json"],
                "tags": ["extractions"],
                "summary": "List the field series extracted by a run",
                "parameters": [{"type": "string", "description": "Run ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "Series index", "schema": {"type": "object"}},
                    "404": {"description": "Run not found"}
                }
            }
        },
        "/extractions/{id}/retry": {
            "post": {
                "produces": ["application/json"],
                "tags": ["extractions"],
                "summary": "Run an extraction again with its stored configuration",
                "parameters": [{"type": "string", "description": "Run ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "202": {"description": "Retry accepted", "schema": {"$ref": "#/definitions/handler.RunAccepted"}},
                    "404": {"description": "Run not found"},
                    "409": {"description": "Run still active"}
                }
            }
        }
    },
    "definitions": {
        "handler.RunAccepted": {
            "type": "object",
            "properties": {
                "message": {"type": "string"},
                "run_id": {"type": "string"},
                "status": {"type": "string"},
                "created_at": {"type": "string"}
            }
        },
        "model.RunSpec": {
            "type": "object",
            "properties": {
                "archives": {"type": "object"},
                "frames": {"type": "object"},
                "field_requests": {"type": "array", "items": {"type": "object"}},
                "export": {"type": "object"},
                "run": {"type": "object"}
            }
        },
        "store.Run": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "spec": {"$ref": "#/definitions/model.RunSpec"},
                "status": {"type": "string"},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"}
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
	Title:            "feax extraction API",
	Description:      "Extracts field time series from FEA result archives.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}

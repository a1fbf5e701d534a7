// Package docs registers the OpenAPI document of the tierd HTTP API with
// swag. Regenerate with `swag init -g cmd/tierd/docs.go -o internal/docs`.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/infer": {
            "post": {
                "tags": ["inference"],
                "summary": "Answer a query on the routed tier",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/types.InferRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.InferResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "415": {"description": "Unsupported Media Type", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "504": {"description": "Gateway Timeout", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/classify": {
            "post": {
                "tags": ["inference"],
                "summary": "Classify a query without answering it",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/types.ClassifyRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.ClassifyResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/status": {
            "get": {
                "tags": ["status"],
                "summary": "Router, device and session status",
                "produces": ["application/json"],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.StatusResponse"}}}
            }
        },
        "/sessions/{id}": {
            "get": {
                "tags": ["sessions"],
                "summary": "Conversation statistics",
                "produces": ["application/json"],
                "parameters": [{"type": "string", "in": "path", "name": "id", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.SessionStatsResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            },
            "delete": {
                "tags": ["sessions"],
                "summary": "Drop a conversation",
                "parameters": [{"type": "string", "in": "path", "name": "id", "required": true}],
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/tasks": {
            "get": {
                "tags": ["tasks"],
                "summary": "Registered administrative task types",
                "produces": ["application/json"],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/tasks/{type}/plan": {
            "post": {
                "tags": ["tasks"],
                "summary": "Render the command plan of a task",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "in": "path", "name": "type", "required": true},
                    {"in": "body", "name": "request", "schema": {"$ref": "#/definitions/types.TaskPlanRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.TaskPlanResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "types.ErrorResponse": {
            "type": "object",
            "properties": {"error": {"type": "string"}, "code": {"type": "integer"}}
        },
        "types.InferRequest": {
            "type": "object",
            "properties": {
                "query": {"type": "string"},
                "session_id": {"type": "string"},
                "context_enabled": {"type": "boolean"},
                "skip_resource_check": {"type": "boolean"},
                "tier_hint": {"type": "string"}
            }
        },
        "types.InferResponse": {
            "type": "object",
            "properties": {
                "answer": {"type": "string"},
                "tier_used": {"type": "string"},
                "classified_tier": {"type": "string"},
                "model_used": {"type": "string"},
                "complexity_score": {"type": "number"},
                "confidence_score": {"type": "number"},
                "escalate": {"type": "boolean"},
                "status": {"type": "string"},
                "fallback_applied": {"type": "boolean"},
                "session_id": {"type": "string"},
                "reasoning": {"type": "string"},
                "processing_time_sec": {"type": "number"},
                "context_turns_used": {"type": "integer"},
                "context_enhanced": {"type": "boolean"}
            }
        },
        "types.ClassifyRequest": {
            "type": "object",
            "properties": {"query": {"type": "string"}, "tier_hint": {"type": "string"}}
        },
        "types.ClassifyResponse": {
            "type": "object",
            "properties": {
                "tier": {"type": "string"},
                "complexity_score": {"type": "number"},
                "rule": {"type": "string"},
                "matched_signals": {"type": "array", "items": {"type": "string"}},
                "subscores": {"type": "object", "additionalProperties": {"type": "number"}},
                "reasoning": {"type": "string"}
            }
        },
        "types.StatusResponse": {
            "type": "object",
            "properties": {
                "state": {"type": "string"},
                "current_tier": {"type": "string"},
                "tiers": {"type": "array", "items": {"type": "object"}},
                "resource": {"type": "object"},
                "active_sessions": {"type": "integer"},
                "idle_unloads_total": {"type": "integer"},
                "fallbacks_total": {"type": "integer"},
                "uptime_seconds": {"type": "integer"},
                "server_time_unix": {"type": "integer"}
            }
        },
        "types.SessionStatsResponse": {
            "type": "object",
            "properties": {
                "session_id": {"type": "string"},
                "total_turns": {"type": "integer"},
                "duration_minutes": {"type": "number"},
                "tier_usage": {"type": "object", "additionalProperties": {"type": "integer"}},
                "average_complexity": {"type": "number"},
                "topics": {"type": "array", "items": {"type": "string"}},
                "last_activity": {"type": "string"},
                "expired": {"type": "boolean"}
            }
        },
        "types.TaskPlanRequest": {
            "type": "object",
            "properties": {"parameters": {"type": "object"}}
        },
        "types.TaskPlanResponse": {
            "type": "object",
            "properties": {
                "type": {"type": "string"},
                "parameters": {"type": "object"},
                "commands": {"type": "array", "items": {"type": "string"}},
                "description": {"type": "string"},
                "requires_confirmation": {"type": "boolean"},
                "confirmation_message": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "tierd API",
	Description:      "Adaptive tier routing for local LLM backends.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}

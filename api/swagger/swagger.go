package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Batch Extractor Bot API",
        "description": "Chat webhook and report downloads for the batch extractor bot",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http",
        "https"
    ],
    "tags": [
        {"name": "Chat", "description": "Search, select and extract batches from a chat"},
        {"name": "Exports", "description": "One-shot report downloads"},
        {"name": "Ops", "description": "Health, readiness and metrics"}
    ],
    "paths": {
        "/health": {
            "get": {
                "tags": ["Ops"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/ready": {
            "get": {
                "tags": ["Ops"],
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"},
                    "503": {"description": "A dependency is unavailable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/metrics": {
            "get": {
                "tags": ["Ops"],
                "summary": "Prometheus metrics",
                "produces": ["text/plain"],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/api/v1/chats/{chatId}/messages": {
            "post": {
                "tags": ["Chat"],
                "summary": "Handle a chat message",
                "description": "Routes /start, /extract, index selections and search terms for one chat",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"name": "chatId", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ChatMessageRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ChatMessageEnvelope"}},
                    "400": {"description": "Invalid message", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/exports/{token}": {
            "get": {
                "tags": ["Exports"],
                "summary": "Download a generated report",
                "description": "Streams the report once, after which it is scheduled for deletion",
                "produces": ["application/octet-stream"],
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Report file", "schema": {"type": "file"}},
                    "403": {"description": "Invalid or expired token", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Report already delivered or cleaned up", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "ChatMessageRequest": {
            "type": "object",
            "required": ["text"],
            "properties": {
                "text": {"type": "string"}
            }
        },
        "ChatDocument": {
            "type": "object",
            "properties": {
                "filename": {"type": "string"},
                "url": {"type": "string"},
                "caption": {"type": "string"},
                "entries": {"type": "integer"},
                "expiresAt": {"type": "string", "format": "date-time"}
            }
        },
        "ChatReply": {
            "type": "object",
            "properties": {
                "text": {"type": "string"},
                "document": {"$ref": "#/definitions/ChatDocument"}
            }
        },
        "ChatMessageResponse": {
            "type": "object",
            "properties": {
                "chatId": {"type": "string"},
                "replies": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/ChatReply"}
                }
            }
        },
        "ChatMessageEnvelope": {
            "type": "object",
            "properties": {
                "data": {"$ref": "#/definitions/ChatMessageResponse"},
                "meta": {"type": "object"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}

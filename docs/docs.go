// Package docs registers the OpenAPI document of the wedding photos API.
// Regenerate with: swag init -g cmd/server/main.go
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
        "/api/health": {
            "get": {
                "description": "Returns the current health status of the server and its database",
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "Server is healthy", "schema": {"$ref": "#/definitions/models.HealthResponse"}},
                    "503": {"description": "Database unreachable", "schema": {"$ref": "#/definitions/models.HealthResponse"}}
                }
            }
        },
        "/api/auth/magic-link": {
            "post": {
                "description": "Sends a one-time link and 6-digit code. The answer does not reveal whether the address has an account.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Request sign-in email",
                "parameters": [
                    {"description": "Email address", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.MagicLinkRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.MessageResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/api/auth/verify-code": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Verify sign-in code",
                "parameters": [
                    {"description": "Email and code", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.VerifyCodeRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.SessionResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "429": {"description": "Too many attempts", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/api/uploads/negotiate": {
            "post": {
                "security": [{"SessionAuth": []}],
                "description": "Validates the files, resolves the caller's album and returns the provider endpoint and authorization the client streams bytes to",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["uploads"],
                "summary": "Negotiate upload",
                "parameters": [
                    {"description": "Files to upload", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.NegotiateRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.NegotiateResult"}},
                    "400": {"description": "Validation failed", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "401": {"description": "Not signed in", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "502": {"description": "Media library unavailable", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/api/uploads/finalize": {
            "post": {
                "security": [{"SessionAuth": []}],
                "description": "Creates media items for uploaded tokens in one batch. Items the media library rejects are reported per item.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["uploads"],
                "summary": "Finalize upload",
                "parameters": [
                    {"description": "Uploaded tokens", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.FinalizeRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.FinalizeResult"}},
                    "400": {"description": "Validation failed", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "401": {"description": "Not signed in", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "403": {"description": "Album belongs to someone else", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "404": {"description": "Album not found", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "502": {"description": "Media library unavailable", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/api/gallery/items": {
            "get": {
                "security": [{"SessionAuth": []}],
                "produces": ["application/json"],
                "tags": ["gallery"],
                "summary": "List gallery items",
                "parameters": [
                    {"type": "integer", "default": 1, "description": "Page number", "name": "page", "in": "query"},
                    {"type": "integer", "default": 20, "description": "Page size", "name": "pageSize", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.GalleryResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/api/items/{itemId}/download-url": {
            "get": {
                "security": [{"SessionAuth": []}],
                "produces": ["application/json"],
                "tags": ["items"],
                "summary": "Get download URL",
                "parameters": [
                    {"type": "string", "description": "Media item ID (local or provider)", "name": "itemId", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.DownloadURLResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "models.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "details": {"type": "array", "items": {"type": "string"}},
                "upstreamStatus": {"type": "integer"}
            }
        },
        "models.MessageResponse": {
            "type": "object",
            "properties": {"message": {"type": "string"}}
        },
        "models.HealthResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string"},
                "database": {"type": "string"},
                "timestamp": {"type": "string"}
            }
        },
        "models.MagicLinkRequest": {
            "type": "object",
            "properties": {"email": {"type": "string"}}
        },
        "models.VerifyCodeRequest": {
            "type": "object",
            "properties": {"email": {"type": "string"}, "code": {"type": "string"}}
        },
        "models.SessionResponse": {
            "type": "object",
            "properties": {
                "expiresAt": {"type": "string"},
                "lastActivityAt": {"type": "string"},
                "user": {"type": "object"}
            }
        },
        "models.FileDescriptor": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "size": {"type": "integer"},
                "type": {"type": "string"}
            }
        },
        "models.NegotiateRequest": {
            "type": "object",
            "properties": {
                "files": {"type": "array", "items": {"$ref": "#/definitions/models.FileDescriptor"}}
            }
        },
        "models.NegotiateResult": {
            "type": "object",
            "properties": {
                "albumId": {"type": "string"},
                "uploadEndpoint": {"type": "string"},
                "authorization": {"type": "string"},
                "expiry": {"type": "string"}
            }
        },
        "models.UploadedToken": {
            "type": "object",
            "properties": {
                "filename": {"type": "string"},
                "uploadSessionToken": {"type": "string"},
                "description": {"type": "string"}
            }
        },
        "models.FinalizeRequest": {
            "type": "object",
            "properties": {
                "albumId": {"type": "string"},
                "description": {"type": "string"},
                "tokens": {"type": "array", "items": {"$ref": "#/definitions/models.UploadedToken"}}
            }
        },
        "models.FinalizeItem": {
            "type": "object",
            "properties": {
                "filename": {"type": "string"},
                "providerItemId": {"type": "string"},
                "status": {"type": "string", "enum": ["created", "failed"]},
                "message": {"type": "string"}
            }
        },
        "models.FinalizeResult": {
            "type": "object",
            "properties": {
                "filesUploaded": {"type": "integer"},
                "totalCount": {"type": "integer"},
                "message": {"type": "string"},
                "mediaItems": {"type": "array", "items": {"$ref": "#/definitions/models.FinalizeItem"}}
            }
        },
        "models.GalleryResponse": {
            "type": "object",
            "properties": {
                "items": {"type": "array", "items": {"type": "object"}},
                "nextPageToken": {"type": "string"},
                "totalCount": {"type": "integer"}
            }
        },
        "models.DownloadURLResponse": {
            "type": "object",
            "properties": {
                "mediaItemId": {"type": "string"},
                "downloadUrl": {"type": "string"},
                "filename": {"type": "string"},
                "mimeType": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "SessionAuth": {
            "type": "apiKey",
            "name": "session_token",
            "in": "cookie"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Wedding Photos API",
	Description:      "Guests upload photos and videos straight to a shared media library album; the server negotiates uploads, records them and serves the gallery.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}

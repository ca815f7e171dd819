// Package docs registers the swagger description of the payments API.
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
        "/payments": {
            "post": {
                "description": "Validates the order, charges the token and records the payment",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["payments"],
                "summary": "Pay for an order",
                "parameters": [
                    {"type": "string", "description": "Unique key for request idempotency", "name": "Idempotency-Key", "in": "header"},
                    {"type": "string", "description": "Caller identity", "name": "X-User-Id", "in": "header", "required": true},
                    {"description": "Payment request", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.CreatePaymentRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/rest.APIResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/rest.APIResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/rest.APIResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/rest.APIResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/rest.APIResponse"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/rest.APIResponse"}},
                    "504": {"description": "Gateway Timeout", "schema": {"$ref": "#/definitions/rest.APIResponse"}}
                }
            }
        }
    },
    "definitions": {
        "handlers.CreatePaymentRequest": {
            "type": "object",
            "required": ["orderId", "token"],
            "properties": {
                "orderId": {"type": "string"},
                "token": {"type": "string"}
            }
        },
        "rest.APIResponse": {
            "type": "object",
            "properties": {
                "data": {},
                "error": {"$ref": "#/definitions/rest.ErrorDetail"},
                "success": {"type": "boolean"}
            }
        },
        "rest.ErrorDetail": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api",
	Schemes:          []string{},
	Title:            "FicMart Payment Service API",
	Description:      "Payment initiation for FicMart orders.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}

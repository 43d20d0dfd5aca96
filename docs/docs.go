// Package docs holds the OpenAPI document served under /swagger. It is
// maintained by hand in the layout swag init emits; keep it in step with the
// handler annotations.
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
        "/healthz": {
            "get": {"tags": ["System"], "summary": "Health check", "produces": ["application/json"], "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/subscription/create_or_update": {
            "post": {"tags": ["Subscription"], "summary": "Create or update subscription", "consumes": ["application/json"], "produces": ["application/json"], "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/subscription/cancel": {
            "post": {"tags": ["Subscription"], "summary": "Cancel subscription", "consumes": ["application/json"], "produces": ["application/json"], "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/subscription/schedule_change": {
            "post": {"tags": ["Subscription"], "summary": "Schedule plan change", "consumes": ["application/json"], "produces": ["application/json"], "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/subscription/status": {
            "get": {"tags": ["Subscription"], "summary": "Subscription status", "produces": ["application/json"], "parameters": [{"type": "string", "name": "wallet_address", "in": "query", "required": true}], "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/executor/due_payments": {
            "get": {"tags": ["Executor"], "summary": "Due payments", "produces": ["application/json"], "parameters": [{"type": "integer", "name": "limit", "in": "query"}, {"type": "boolean", "name": "gated", "in": "query"}], "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/executor/due_plan_changes": {
            "get": {"tags": ["Executor"], "summary": "Due plan changes", "produces": ["application/json"], "parameters": [{"type": "integer", "name": "cursor", "in": "query"}, {"type": "integer", "name": "limit", "in": "query"}, {"type": "boolean", "name": "only_unscheduled", "in": "query"}], "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/executor/report_schedule_outcome": {
            "post": {"tags": ["Executor"], "summary": "Report schedule outcome", "consumes": ["application/json"], "produces": ["application/json"], "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/executor/report_payment_outcome": {
            "post": {"tags": ["Executor"], "summary": "Report payment outcome", "description": "Idempotent per billing period. period_start is the next_payment_at read from the feed and is required on success.", "consumes": ["application/json"], "produces": ["application/json"], "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/admin/payment_logs": {
            "post": {"tags": ["Admin"], "summary": "Scan payment logs (Admin)", "consumes": ["application/json"], "produces": ["application/json"], "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/admin/plan_changes": {
            "get": {"tags": ["Admin"], "summary": "List plan changes (Admin)", "produces": ["application/json"], "parameters": [{"type": "integer", "name": "cursor", "in": "query"}, {"type": "integer", "name": "limit", "in": "query"}], "responses": {"200": {"description": "OK"}}}
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8888",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Renewal Backend API",
	Description:      "Recurring payment and plan change scheduling backend.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}

// Package docs registers the OpenAPI description served at /swagger.
//
// The handler annotations in internal/http/handlers are the source of truth;
// regenerate the full document with:
//
//	swag init -g cmd/server/main.go -o docs --parseInternal
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
        "/tables": {
            "get": {"tags": ["Tables"], "summary": "List tables", "operationId": "listTables", "responses": {"200": {"description": "OK"}, "304": {"description": "Not Modified"}}},
            "post": {"tags": ["Tables"], "summary": "Open a table", "operationId": "createTable", "responses": {"201": {"description": "Created"}, "400": {"description": "Bad Request"}}},
            "delete": {"tags": ["Tables"], "summary": "Delete tables by code", "operationId": "deleteTables", "responses": {"200": {"description": "OK"}}}
        },
        "/tables/{code}": {
            "get": {"tags": ["Tables"], "summary": "Get a table by code", "operationId": "getTable", "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}
        },
        "/items": {
            "get": {"tags": ["Items"], "summary": "List menu items", "operationId": "listItems", "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["Items"], "summary": "Create an item", "operationId": "createItem", "responses": {"201": {"description": "Created"}, "409": {"description": "Code already exists!"}}}
        },
        "/items/{id}": {
            "get": {"tags": ["Items"], "summary": "Get an item", "operationId": "getItem", "responses": {"200": {"description": "OK"}}},
            "put": {"tags": ["Items"], "summary": "Update an item", "operationId": "updateItem", "responses": {"200": {"description": "OK"}}},
            "delete": {"tags": ["Items"], "summary": "Delete an item", "operationId": "deleteItem", "responses": {"204": {"description": "No Content"}}}
        },
        "/items/export": {
            "get": {"tags": ["Items"], "summary": "Export the menu as xlsx", "operationId": "exportItems", "responses": {"200": {"description": "OK"}}}
        },
        "/categories": {
            "get": {"tags": ["Categories"], "summary": "List categories", "operationId": "listCategories", "responses": {"200": {"description": "OK"}}}
        },
        "/realtime": {
            "get": {"tags": ["Realtime"], "summary": "Subscribe to collection changes", "operationId": "realtime", "responses": {"101": {"description": "Switching Protocols"}}}
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Restaurant Tables & Menu API",
	Description:      "Tables, menu items and categories with a realtime change stream.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}

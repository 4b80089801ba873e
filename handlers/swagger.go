package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints for the advisor service.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg gin.IRouter) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(swaggerHTML))
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>coursepilot - Swagger</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "coursepilot", "version": "v0.1.0" },
  "components": {
    "schemas": {
      "Error": { "type": "object", "properties": { "message": { "type": "string" } } }
    }
  },
  "paths": {
    "/upload": {
      "post": {
        "summary": "Upload a what-if report PDF; returns the content id",
        "requestBody": { "content": { "multipart/form-data": { "schema": { "type": "object", "properties": { "what-if": { "type": "string", "format": "binary" } } } } } },
        "responses": {
          "200": { "description": "stored", "content": { "application/json": { "schema": { "type": "object", "properties": { "id": { "type": "string" } } } } } },
          "400": { "description": "missing field or unreadable pdf" },
          "413": { "description": "upload too large" },
          "500": { "description": "store failure" }
        }
      }
    },
    "/recommend": {
      "post": {
        "summary": "Build a course schedule from a stored report",
        "requestBody": { "content": { "application/json": { "schema": { "type": "object", "required": ["id"], "properties": { "id": { "type": "string" }, "major": { "type": "string" }, "campus": { "type": "string" }, "query": { "type": "string" } } } } } },
        "responses": {
          "200": { "description": "schedule json from the model" },
          "400": { "description": "invalid hex id or unknown document id" },
          "500": { "description": "store failure" },
          "502": { "description": "completion failed" }
        }
      }
    },
    "/api/documents/{id}": {
      "parameters": [ { "name": "id", "in": "path", "required": true, "schema": { "type": "string" } } ],
      "get": { "summary": "Fetch a stored report", "responses": { "200": { "description": "content and created time" }, "404": { "description": "unknown id" } } },
      "head": { "summary": "Check a report exists", "responses": { "200": { "description": "exists" }, "404": { "description": "unknown id" } } },
      "delete": { "summary": "Remove a stored report", "responses": { "204": { "description": "removed" }, "404": { "description": "unknown id" } } }
    },
    "/api/documents/{id}/original": {
      "parameters": [ { "name": "id", "in": "path", "required": true, "schema": { "type": "string" } } ],
      "get": { "summary": "Redirect to the archived upload", "responses": { "307": { "description": "presigned download" }, "404": { "description": "unknown id or archive disabled" } } }
    },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } }
  }
}`

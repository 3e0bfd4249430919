package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints for the API.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg gin.IRoutes) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>ledgerly-api - Swagger</title>
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
  "info": { "title": "ledgerly-api", "version": "v0.1.0" },
  "components": {
    "securitySchemes": {
      "bearer": { "type": "http", "scheme": "bearer", "bearerFormat": "JWT" },
      "cookie": { "type": "apiKey", "in": "cookie", "name": "token" }
    },
    "schemas": {
      "Credentials": { "type": "object", "required": ["username", "password"], "properties": { "username": {"type":"string"}, "password": {"type":"string"} } },
      "Error": { "type": "object", "properties": { "success": {"type":"boolean"}, "error": {"type":"string"}, "code": {"type":"string"} } }
    }
  },
  "paths": {
    "/api/auth/register": {
      "post": { "summary": "Create an account and start a session", "requestBody": { "content": { "application/json": { "schema": {"$ref":"#/components/schemas/Credentials"} } } }, "responses": { "201": { "description": "user and token" }, "400": { "description": "invalid input" }, "409": { "description": "username taken" } } }
    },
    "/api/auth/login": {
      "post": { "summary": "Exchange credentials for a session token", "requestBody": { "content": { "application/json": { "schema": {"$ref":"#/components/schemas/Credentials"} } } }, "responses": { "200": { "description": "user and token, token cookie set" }, "401": { "description": "invalid credentials" }, "403": { "description": "account disabled" } } }
    },
    "/api/auth/logout": {
      "post": { "summary": "Revoke the presented token and clear the cookie", "responses": { "200": { "description": "logged out" } } }
    },
    "/api/auth/me": {
      "get": { "summary": "Current session user", "security": [{"bearer": []}, {"cookie": []}], "responses": { "200": { "description": "session user" }, "401": { "description": "no, invalid, expired or revoked token" } } }
    },
    "/api/auth/verify": {
      "get": { "summary": "Session check used by the route gate", "security": [{"bearer": []}, {"cookie": []}], "responses": { "200": { "description": "session valid" }, "401": { "description": "session rejected" } } }
    },
    "/api/account": {
      "get": { "summary": "Balance, bank and verification state", "security": [{"bearer": []}, {"cookie": []}], "responses": { "200": { "description": "account" }, "401": { "description": "unauthenticated" }, "403": { "description": "role not allowed" } } }
    },
    "/api/admin/users/{id}": {
      "get": { "summary": "Look up any account (admin)", "parameters": [{"name":"id","in":"path","required":true,"schema":{"type":"string"}}], "security": [{"bearer": []}, {"cookie": []}], "responses": { "200": { "description": "user" }, "403": { "description": "not an admin" }, "404": { "description": "no such user" } } }
    }
  }
}`

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger serves the catalog API description.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg *gin.Engine) {
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
    <title>FlexiMart catalog API</title>
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

// OpenAPI document for the catalog query API.
const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "fleximart-catalog", "version": "v1.0.0" },
  "paths": {
    "/api/v1/products": {
      "get": {
        "summary": "Products of a category priced below max_price (name, price, stock)",
        "parameters": [
          { "name": "category", "in": "query", "required": true, "schema": { "type": "string" } },
          { "name": "max_price", "in": "query", "required": true, "schema": { "type": "number" } }
        ],
        "responses": { "200": { "description": "matching products" }, "400": { "description": "bad query" }, "503": { "description": "store unavailable" } }
      }
    },
    "/api/v1/products/top-rated": {
      "get": {
        "summary": "Products whose average review rating is at least min_rating",
        "parameters": [ { "name": "min_rating", "in": "query", "required": false, "schema": { "type": "number", "minimum": 0, "maximum": 5 } } ],
        "responses": { "200": { "description": "product_id, product_name, avg_rating" }, "503": { "description": "store unavailable" } }
      }
    },
    "/api/v1/products/{product_id}/reviews": {
      "post": {
        "summary": "Append a review; the date is assigned by the service",
        "parameters": [ { "name": "product_id", "in": "path", "required": true, "schema": { "type": "string" } } ],
        "requestBody": { "content": { "application/json": { "schema": {"type":"object","required":["user_id","rating"],"properties":{"user_id":{"type":"string"},"rating":{"type":"number","minimum":1,"maximum":5},"comment":{"type":"string"}}}}}},
        "responses": { "200": { "description": "matched and modified counts" }, "400": { "description": "invalid review" }, "401": { "description": "missing or invalid token" }, "404": { "description": "no such product (matched 0)" } }
      }
    },
    "/api/v1/categories/summary": {
      "get": { "summary": "Average price and product count per category, highest average first", "responses": { "200": { "description": "category, avg_price, product_count" } } }
    },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } },
    "/metrics": { "get": { "summary": "Prometheus metrics", "responses": { "200": { "description": "metrics" } } } }
  }
}`

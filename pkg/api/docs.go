package api

import (
	"net/http"

	"github.com/swaggo/swag"
	"gopkg.in/yaml.v3"
)

const docTemplate = `{
  "swagger": "2.0",
  "info": {
    "title": "{{.Title}}",
    "description": "{{escape .Description}}",
    "version": "{{.Version}}"
  },
  "basePath": "{{.BasePath}}",
  "schemes": {{ marshal .Schemes }},
  "produces": ["application/json"],
  "securityDefinitions": {
    "ApiKeyAuth": {"type": "apiKey", "in": "header", "name": "X-API-Key"}
  },
  "paths": {
    "/records": {
      "get": {
        "summary": "List log records",
        "security": [{"ApiKeyAuth": []}],
        "parameters": [
          {"name": "from", "in": "query", "type": "string", "description": "Start LSN (X/X)"},
          {"name": "limit", "in": "query", "type": "integer", "description": "Page size, max 1000"}
        ],
        "responses": {
          "200": {"description": "Record page", "schema": {"$ref": "#/definitions/RecordPage"}},
          "400": {"description": "Bad parameters"}
        }
      }
    },
    "/records/{lsn}": {
      "get": {
        "summary": "Get the record starting at an LSN",
        "security": [{"ApiKeyAuth": []}],
        "parameters": [{"name": "lsn", "in": "path", "required": true, "type": "string"}],
        "responses": {
          "200": {"description": "Record", "schema": {"$ref": "#/definitions/RecordView"}},
          "404": {"description": "No record at LSN"}
        }
      }
    },
    "/events": {
      "get": {
        "summary": "List archived change events",
        "security": [{"ApiKeyAuth": []}],
        "parameters": [{"name": "limit", "in": "query", "type": "integer"}],
        "responses": {
          "200": {"description": "Events", "schema": {"type": "array", "items": {"$ref": "#/definitions/EventView"}}},
          "503": {"description": "Event archive not configured"}
        }
      }
    },
    "/slots/{slot}": {
      "get": {
        "summary": "Get a decoding slot's confirmed LSN",
        "security": [{"ApiKeyAuth": []}],
        "parameters": [{"name": "slot", "in": "path", "required": true, "type": "string"}],
        "responses": {
          "200": {"description": "Slot", "schema": {"$ref": "#/definitions/SlotView"}},
          "404": {"description": "Slot not found"}
        }
      }
    }
  },
  "definitions": {
    "RecordView": {
      "type": "object",
      "properties": {
        "lsn": {"type": "string"},
        "xid": {"type": "integer"},
        "origin": {"type": "integer"},
        "rmgr": {"type": "string"},
        "label": {"type": "string"},
        "length": {"type": "integer"},
        "desc": {"type": "string"},
        "error": {"type": "string"}
      }
    },
    "RecordPage": {
      "type": "object",
      "properties": {
        "records": {"type": "array", "items": {"$ref": "#/definitions/RecordView"}},
        "next": {"type": "string"}
      }
    },
    "EventView": {
      "type": "object",
      "properties": {
        "id": {"type": "string"},
        "time": {"type": "string", "format": "date-time"},
        "kind": {"type": "string"},
        "record": {"$ref": "#/definitions/RecordView"}
      }
    },
    "SlotView": {
      "type": "object",
      "properties": {
        "slot": {"type": "string"},
        "restart_lsn": {"type": "string"},
        "confirmed_lsn": {"type": "string"}
      }
    }
  }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	BasePath:         "/api/v1",
	Schemes:          []string{"http"},
	Title:            "refreshwal inspection API",
	Description:      "Read-only view of the refresh log, the decoded event archive and decoding slots.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}

const swaggerUI = `<!DOCTYPE html>
<html>
<head>
	 <title>refreshwal API Documentation</title>
	 <link rel="stylesheet" type="text/css" href="https://unpkg.com/swagger-ui-dist@3.25.0/swagger-ui.css" />
</head>
<body>
	 <div id="swagger-ui"></div>
	 <script src="https://unpkg.com/swagger-ui-dist@3.25.0/swagger-ui-bundle.js"></script>
	 <script>
	   window.onload = function() {
	     SwaggerUIBundle({
	       url: '/swagger/swagger.json',
	       dom_id: '#swagger-ui',
	       presets: [
	         SwaggerUIBundle.presets.apis,
	         SwaggerUIBundle.presets.standalone
	       ]
	     });
	   };
	 </script>
</body>
</html>`

// handleSwagger serves the UI page and the API document as JSON or YAML
func (s *Server) handleSwagger(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/swagger/", "/swagger/index.html":
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(swaggerUI))

	case "/swagger/swagger.json", "/swagger/swagger.yaml":
		doc, err := swag.ReadDoc(SwaggerInfo.InstanceName())
		if err != nil {
			s.logger.Error("render swagger doc", "error", err)
			http.Error(w, "Failed to generate Swagger documentation", http.StatusInternalServerError)
			return
		}
		if r.URL.Path == "/swagger/swagger.json" {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(doc))
			return
		}

		// JSON is a YAML subset, so a round trip through yaml.v3 converts it
		var tree interface{}
		if err := yaml.Unmarshal([]byte(doc), &tree); err != nil {
			http.Error(w, "Failed to convert Swagger documentation", http.StatusInternalServerError)
			return
		}
		out, err := yaml.Marshal(tree)
		if err != nil {
			http.Error(w, "Failed to convert Swagger documentation", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		w.Write(out)

	default:
		http.NotFound(w, r)
	}
}

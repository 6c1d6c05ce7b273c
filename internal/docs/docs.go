// Package docs serves the OpenAPI document of the HTTP API.
package docs

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"net/http"

	"gopkg.in/yaml.v3"

	"train-station/internal/utils"
)

//go:embed openapi.yaml
var openAPI []byte

// Document returns the OpenAPI document as YAML.
func Document() []byte {
	return openAPI
}

// JSON converts the embedded document to JSON.
func JSON() ([]byte, error) {
	var doc map[string]interface{}
	if err := yaml.Unmarshal(openAPI, &doc); err != nil {
		return nil, fmt.Errorf("parse openapi.yaml: %w", err)
	}
	return json.Marshal(doc)
}

// Handler serves the document, as JSON when ?format=json is given.
func Handler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("format") == "json" {
		body, err := JSON()
		if err != nil {
			utils.WriteError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(openAPI)
}

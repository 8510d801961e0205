package adapter

import (
	"encoding/json"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/goerr/v2"
)

var (
	sourceSchema = &jsonschema.Schema{
		Type:     "object",
		Required: []string{"type", "name"},
		Properties: map[string]*jsonschema.Schema{
			"type":  {Type: "string", Enum: []any{"document", "table", "url"}},
			"name":  {Type: "string"},
			"url":   {Types: []string{"string", "null"}},
			"query": {Types: []string{"string", "null"}},
		},
	}

	validationSchema = &jsonschema.Schema{
		Types:    []string{"object", "null"},
		Required: []string{"status"},
		Properties: map[string]*jsonschema.Schema{
			"status":        {Type: "string", Enum: []any{"PASS", "FAIL"}},
			"summary":       {Types: []string{"string", "null"}},
			"discrepancies": {Types: []string{"array", "null"}, Items: &jsonschema.Schema{Type: "string"}},
			"agent":         {Types: []string{"string", "null"}},
		},
	}

	chartSchema = &jsonschema.Schema{
		Types:    []string{"object", "null"},
		Required: []string{"url"},
		Properties: map[string]*jsonschema.Schema{
			"url":   {Type: "string"},
			"title": {Types: []string{"string", "null"}},
		},
	}

	metadataSchema = &jsonschema.Schema{
		Types: []string{"object", "null"},
		Properties: map[string]*jsonschema.Schema{
			"agentUsed":    {Types: []string{"string", "null"}},
			"responseTime": {Types: []string{"number", "null"}},
		},
	}

	chatResponseSchema = mustResolve(&jsonschema.Schema{
		Type:     "object",
		Required: []string{"response", "sessionId"},
		Properties: map[string]*jsonschema.Schema{
			"response":   {Type: "string"},
			"sessionId":  {Type: "string"},
			"sources":    {Types: []string{"array", "null"}, Items: sourceSchema},
			"validation": validationSchema,
			"chart":      chartSchema,
			"metadata":   metadataSchema,
		},
	})

	sessionResponseSchema = mustResolve(&jsonschema.Schema{
		Type:     "object",
		Required: []string{"sessionId"},
		Properties: map[string]*jsonschema.Schema{
			"sessionId":    {Type: "string"},
			"clientId":     {Types: []string{"string", "null"}},
			"kristalId":    {Types: []string{"string", "null"}},
			"createdAt":    {Types: []string{"string", "null"}},
			"messageCount": {Types: []string{"integer", "null"}},
		},
	})
)

func mustResolve(s *jsonschema.Schema) *jsonschema.Resolved {
	resolved, err := s.Resolve(nil)
	if err != nil {
		panic("invalid agent response schema: " + err.Error())
	}
	return resolved
}

// errMalformedBody marks a body that is not JSON at all, as opposed to JSON of
// the wrong shape.
var errMalformedBody = goerr.New("response body is not valid JSON")

// decodeShaped checks raw against schema before decoding it into dst
func decodeShaped(raw []byte, schema *jsonschema.Resolved, dst any) error {
	var instance any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return goerr.Wrap(errMalformedBody, "failed to parse response body", goerr.V("error", err.Error()))
	}
	if err := schema.Validate(instance); err != nil {
		return goerr.Wrap(err, "response does not match schema")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return goerr.Wrap(err, "failed to decode response")
	}
	return nil
}

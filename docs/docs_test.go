package docs

import (
	"encoding/json"
	"testing"

	"github.com/swaggo/swag"
)

func TestDocRendersWithBodySchemas(t *testing.T) {
	raw, err := swag.ReadDoc(SwaggerInfo.InstanceName())
	if err != nil {
		t.Fatalf("ReadDoc: %v", err)
	}
	var doc struct {
		BasePath    string                    `json:"basePath"`
		Paths       map[string]map[string]any `json:"paths"`
		Definitions map[string]struct {
			Required   []string       `json:"required"`
			Properties map[string]any `json:"properties"`
		} `json:"definitions"`
	}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		t.Fatalf("rendered doc is not JSON: %v", err)
	}
	if doc.BasePath != SwaggerInfo.BasePath {
		t.Fatalf("basePath = %q", doc.BasePath)
	}
	for _, p := range []string{"/ingest", "/analyze", "/insights", "/digest/run"} {
		if _, ok := doc.Paths[p]; !ok {
			t.Fatalf("missing path %s", p)
		}
	}

	batch, ok := doc.Definitions["services.IngestBatch"]
	if !ok {
		t.Fatalf("missing IngestBatch definition")
	}
	if _, ok := batch.Properties["reviews"]; !ok || len(batch.Required) == 0 {
		t.Fatalf("IngestBatch schema incomplete: %+v", batch)
	}
	for _, name := range []string{"services.IngestItem", "services.IngestResult", "handlers.AnalyzeRequest", "handlers.ErrorResponse"} {
		if _, ok := doc.Definitions[name]; !ok {
			t.Fatalf("missing definition %s", name)
		}
	}
}

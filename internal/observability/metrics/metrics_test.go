package metrics

import (
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("org_id", "123"),
		attribute.String("user_id", "456"),
		attribute.String("provider", "azure"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	if attrs[0].Key != "org_id" && attrs[1].Key != "org_id" {
		t.Fatalf("expected org_id to be retained")
	}
	if attrs[0].Key != "provider" && attrs[1].Key != "provider" {
		t.Fatalf("expected provider to be retained")
	}
}

package capability

import (
	"testing"

	"github.com/agentbridge/agentbridge/internal/model"
)

func TestForAgentFiltersByAdvertisedCapabilities(t *testing.T) {
	schemas := ForAgent([]string{"health_check"})
	if len(schemas) != 1 || schemas[0].Type != model.CommandHealth {
		t.Fatalf("expected only health schema, got %+v", schemas)
	}
}

func TestForAgentWithNoCapabilitiesReturnsEmpty(t *testing.T) {
	schemas := ForAgent(nil)
	if len(schemas) != 0 {
		t.Fatalf("expected no schemas for an agent with no capabilities, got %+v", schemas)
	}
}

func TestForAgentWithAllCapabilitiesReturnsFullCatalog(t *testing.T) {
	schemas := ForAgent([]string{"health_check", "log_retrieval", "container_restart"})
	if len(schemas) != len(Catalog) {
		t.Fatalf("expected all %d catalog entries, got %d", len(Catalog), len(schemas))
	}
}

package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"neco/internal/service"
	"neco/internal/store"
	"neco/pkg/api"

	"github.com/google/uuid"
)

func TestGetNodeDefinition(t *testing.T) {
	callerID := uuid.New()
	defID := uuid.New()

	h := testHandlers(Deps{NodeDefinitions: &mockNodeDefs{
		get: func(id, caller uuid.UUID) (*store.NodeDefinition, error) {
			if caller != callerID {
				t.Errorf("got caller %v, want %v", caller, callerID)
			}
			return &store.NodeDefinition{ID: id, Name: "HTTP", Type: "action", IsPublic: true}, nil
		},
	}})

	rr := serve(t, "GET /node-definitions/{id}", h.GetNodeDefinition, http.MethodGet, "/node-definitions/"+defID.String(), nil, &callerID)
	if rr.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", rr.Code, http.StatusOK)
	}

	var body map[string]json.RawMessage
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if string(body["parameters"]) != "{}" {
		t.Errorf("got parameters %s, want {}", body["parameters"])
	}
}

func TestListNodeDefinitions(t *testing.T) {
	callerID := uuid.New()

	tests := []struct {
		name       string
		items      []store.NodeDefinition
		err        error
		wantStatus int
		wantNames  []string
	}{
		{
			name: "visible definitions",
			items: []store.NodeDefinition{
				{ID: uuid.New(), Name: "File Upload", Type: "trigger", IsPublic: true},
				{ID: uuid.New(), Name: "Mine", Type: "action", CreatedBy: callerID},
			},
			wantStatus: http.StatusOK,
			wantNames:  []string{"File Upload", "Mine"},
		},
		{name: "none", wantStatus: http.StatusOK, wantNames: []string{}},
		{name: "store down", err: service.Upstream(errDBDown), wantStatus: http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := testHandlers(Deps{NodeDefinitions: &mockNodeDefs{
				list: func(caller uuid.UUID) ([]store.NodeDefinition, int, error) {
					if caller != callerID {
						t.Errorf("got caller %v, want %v", caller, callerID)
					}
					if tt.err != nil {
						return nil, 0, tt.err
					}
					return tt.items, len(tt.items), nil
				},
			}})

			rr := serve(t, "GET /node-definitions", h.ListNodeDefinitions, http.MethodGet, "/node-definitions", nil, &callerID)
			if rr.Code != tt.wantStatus {
				t.Fatalf("got status %d, want %d", rr.Code, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}

			var resp api.NodeDefinitionListResponse
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode: %v", err)
			}
			if resp.NodeDefinitions == nil {
				t.Fatal("expected node_definitions to be an array")
			}
			names := []string{}
			for _, d := range resp.NodeDefinitions {
				names = append(names, d.Name)
			}
			if len(names) != len(tt.wantNames) || resp.Total != len(tt.wantNames) {
				t.Fatalf("got %v (total %d), want %v", names, resp.Total, tt.wantNames)
			}
			for i := range names {
				if names[i] != tt.wantNames[i] {
					t.Errorf("item %d: got %q, want %q", i, names[i], tt.wantNames[i])
				}
			}
		})
	}
}

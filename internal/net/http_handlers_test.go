package net

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"

	"craftgate/server/internal/economy"
	"craftgate/server/internal/guard"
	"craftgate/server/internal/progression"
	"craftgate/server/progression/graph"
)

func testHandler(t *testing.T, cfg HTTPHandlerConfig) (http.Handler, *progression.Manager) {
	t.Helper()
	store, err := graph.NewStore(nil, "")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	store.UpsertNode(graph.NodeDocument{ID: "planks", RecipeID: "wood_planks", StudyCost: 2})
	store.UpsertNode(graph.NodeDocument{
		ID: "sword", RecipeID: "wooden_sword", StudyCost: 5,
		Gating:       graph.GatingDocument{RequiredRecipeIDs: []string{"wood_planks"}},
		Availability: graph.AvailabilityDocument{Mode: "REQUIRES_NODES"},
	})
	manager := progression.NewManager(progression.DefaultConfig(), store, nil, nil, nil, nil)
	gatingGuard := guard.New(manager, nil)
	return NewHTTPHandler(manager, gatingGuard, cfg), manager
}

func postJSON(t *testing.T, handler http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	return resp
}

func TestHTTPStudyFlow(t *testing.T) {
	handler, manager := testHandler(t, HTTPHandlerConfig{})
	manager.GrantPoints(context.Background(), "alice", economy.PointsLearning, 10)

	resp := postJSON(t, handler, "/study", map[string]string{"playerId": "alice", "recipeId": "wooden_sword"})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	var result studyResultMessage
	if err := json.Unmarshal(resp.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode study result: %v", err)
	}
	if result.OK || result.Reason == "" {
		t.Fatalf("sword before planks should be denied with a reason, got %+v", result)
	}

	resp = postJSON(t, handler, "/study", map[string]string{"playerId": "alice", "recipeId": "wood_planks"})
	if err := json.Unmarshal(resp.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode study result: %v", err)
	}
	if !result.OK {
		t.Fatalf("planks study denied: %+v", result)
	}
	if !manager.IsStudied("alice", "wood_planks") {
		t.Fatalf("study endpoint did not persist the studied fact")
	}
}

func TestHTTPStudyRejectsMissingIDs(t *testing.T) {
	handler, _ := testHandler(t, HTTPHandlerConfig{})
	resp := postJSON(t, handler, "/study", map[string]string{"playerId": "alice"})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}

func TestHTTPProgressEndpoint(t *testing.T) {
	handler, manager := testHandler(t, HTTPHandlerConfig{})
	manager.GrantPoints(context.Background(), "alice", economy.PointsLearning, 2)
	manager.Study(context.Background(), "alice", "wood_planks")

	req := httptest.NewRequest(http.MethodGet, "/progress?id=alice", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	var payload progressMessage
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode progress: %v", err)
	}
	states := make(map[string]progression.NodeState)
	for _, node := range payload.Nodes {
		states[node.NodeID] = node.State
	}
	if states["planks"] != progression.NodeStudied {
		t.Fatalf("planks state = %q", states["planks"])
	}
}

func TestHTTPRecipeStatus(t *testing.T) {
	handler, _ := testHandler(t, HTTPHandlerConfig{})

	req := httptest.NewRequest(http.MethodGet, "/recipe?id=alice&recipe=wooden_sword", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	var payload struct {
		MayUse    bool   `json:"mayUse"`
		Studied   bool   `json:"studied"`
		Available bool   `json:"available"`
		Reason    string `json:"reason"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if payload.MayUse || payload.Studied || payload.Available {
		t.Fatalf("fresh player should have everything locked: %+v", payload)
	}
	if payload.Reason == "" {
		t.Fatalf("locked status must carry a reason")
	}
}

func TestHTTPRecipesHidesUnstudied(t *testing.T) {
	handler, manager := testHandler(t, HTTPHandlerConfig{})
	manager.GrantPoints(context.Background(), "alice", economy.PointsLearning, 2)
	manager.Study(context.Background(), "alice", "wood_planks")

	req := httptest.NewRequest(http.MethodGet, "/recipes?id=alice", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	var payload struct {
		Recipes []*progression.Entry `json:"recipes"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode recipes: %v", err)
	}
	if len(payload.Recipes) != 1 || payload.Recipes[0].ID != "wood_planks" {
		t.Fatalf("unexpected recipe list %+v", payload.Recipes)
	}
}

func TestHTTPAdminEndpointsRequireToken(t *testing.T) {
	handler, _ := testHandler(t, HTTPHandlerConfig{AdminToken: "secret"})

	resp := postJSON(t, handler, "/admin/graph/reload", map[string]string{})
	if resp.Code != http.StatusForbidden {
		t.Fatalf("missing token: expected 403, got %d", resp.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/admin/graph/reload", bytes.NewReader([]byte("{}")))
	req.Header.Set("X-Admin-Token", "secret")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusOK {
		t.Fatalf("valid token: expected 200, got %d", recorder.Code)
	}
}

func TestHTTPAdminDisabledWithoutToken(t *testing.T) {
	handler, _ := testHandler(t, HTTPHandlerConfig{})
	resp := postJSON(t, handler, "/admin/points", map[string]any{"playerId": "alice", "amount": 5})
	if resp.Code != http.StatusForbidden {
		t.Fatalf("blank token must disable admin endpoints, got %d", resp.Code)
	}
}

func TestWebsocketStudySession(t *testing.T) {
	handler, manager := testHandler(t, HTTPHandlerConfig{})
	manager.GrantPoints(context.Background(), "alice", economy.PointsLearning, 10)

	server := httptest.NewServer(handler)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?id=alice"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Initial progress snapshot arrives unprompted.
	var progress progressMessage
	if err := conn.ReadJSON(&progress); err != nil {
		t.Fatalf("read initial progress: %v", err)
	}
	if progress.Type != "progress" || len(progress.Nodes) != 2 {
		t.Fatalf("unexpected initial payload %+v", progress)
	}

	if err := conn.WriteJSON(clientMessage{Type: "study", RecipeID: "wood_planks"}); err != nil {
		t.Fatalf("write study: %v", err)
	}
	var result studyResultMessage
	if err := conn.ReadJSON(&result); err != nil {
		t.Fatalf("read study result: %v", err)
	}
	if !result.OK {
		t.Fatalf("study denied: %+v", result)
	}
	if err := conn.ReadJSON(&progress); err != nil {
		t.Fatalf("read progress update: %v", err)
	}
	for _, node := range progress.Nodes {
		if node.NodeID == "planks" && node.State != progression.NodeStudied {
			t.Fatalf("progress update missing studied state: %+v", node)
		}
	}

	if err := conn.WriteJSON(clientMessage{Type: "list"}); err != nil {
		t.Fatalf("write list: %v", err)
	}
	var list struct {
		Type    string   `json:"type"`
		Recipes []string `json:"recipes"`
	}
	if err := conn.ReadJSON(&list); err != nil {
		t.Fatalf("read list: %v", err)
	}
	if len(list.Recipes) != 1 || list.Recipes[0] != "wood_planks" {
		t.Fatalf("unexpected recipe list %+v", list)
	}
}

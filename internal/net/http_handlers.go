package net

import (
	"encoding/json"
	"io"
	"log"
	nethttp "net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"craftgate/server/internal/economy"
	"craftgate/server/internal/guard"
	"craftgate/server/internal/progression"
	"craftgate/server/progression/graph"
)

type HTTPHandlerConfig struct {
	// AdminToken gates the mutating admin endpoints. Blank disables them.
	AdminToken string
	Logger     *log.Logger
}

type clientMessage struct {
	Ver      int      `json:"ver,omitempty"`
	Type     string   `json:"type"`
	RecipeID string   `json:"recipeId,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	SentAt   int64    `json:"sentAt,omitempty"`
}

type studyResultMessage struct {
	Ver      int    `json:"ver"`
	Type     string `json:"type"`
	RecipeID string `json:"recipeId"`
	OK       bool   `json:"ok"`
	Reason   string `json:"reason,omitempty"`
}

type progressMessage struct {
	Ver    int                      `json:"ver"`
	Type   string                   `json:"type"`
	Nodes  []progression.NodeStatus `json:"nodes"`
	Ledger any                      `json:"ledger"`
}

type heartbeatMessage struct {
	Ver        int    `json:"ver"`
	Type       string `json:"type"`
	ServerTime int64  `json:"serverTime"`
	ClientTime int64  `json:"clientTime"`
}

// ProtocolVersion tags every websocket payload so clients can reject frames
// from a newer server.
const ProtocolVersion = 1

func NewHTTPHandler(manager *progression.Manager, gatingGuard *guard.Guard, cfg HTTPHandlerConfig) nethttp.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	mux := nethttp.NewServeMux()

	mux.HandleFunc("/health", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/diagnostics", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		snapshot := manager.Graph().Snapshot()
		payload := struct {
			Status     string          `json:"status"`
			ServerTime int64           `json:"serverTime"`
			Nodes      int             `json:"nodes"`
			Tabs       int             `json:"tabs"`
			Cyclic     int             `json:"cyclic"`
			Problems   []graph.Problem `json:"problems"`
		}{
			Status:     "ok",
			ServerTime: time.Now().UnixMilli(),
			Nodes:      len(snapshot.Nodes),
			Tabs:       len(snapshot.Tabs),
			Cyclic:     len(snapshot.Cyclic),
			Problems:   manager.Problems(),
		}
		writeJSONResponse(w, payload)
	})

	mux.HandleFunc("/join", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodPost {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		playerID := playerIDFrom(r)
		if playerID == "" {
			httpError(w, "missing player id", nethttp.StatusBadRequest)
			return
		}
		if err := manager.Join(playerID); err != nil {
			logger.Printf("join failed for %s: %v", playerID, err)
			httpError(w, "failed to load player", nethttp.StatusInternalServerError)
			return
		}
		writeJSONResponse(w, progressMessage{
			Ver:    ProtocolVersion,
			Type:   "progress",
			Nodes:  manager.PlayerProgress(playerID),
			Ledger: manager.Ledger(playerID),
		})
	})

	mux.HandleFunc("/leave", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodPost {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		playerID := playerIDFrom(r)
		if playerID == "" {
			httpError(w, "missing player id", nethttp.StatusBadRequest)
			return
		}
		if err := manager.Leave(playerID); err != nil {
			logger.Printf("leave failed for %s: %v", playerID, err)
			httpError(w, "failed to persist player", nethttp.StatusInternalServerError)
			return
		}
		writeJSONResponse(w, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("/progress", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		playerID := playerIDFrom(r)
		if playerID == "" {
			httpError(w, "missing player id", nethttp.StatusBadRequest)
			return
		}
		writeJSONResponse(w, progressMessage{
			Ver:    ProtocolVersion,
			Type:   "progress",
			Nodes:  manager.PlayerProgress(playerID),
			Ledger: manager.Ledger(playerID),
		})
	})

	mux.HandleFunc("/recipe", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		playerID := strings.TrimSpace(r.URL.Query().Get("id"))
		recipeID := strings.TrimSpace(r.URL.Query().Get("recipe"))
		if playerID == "" || recipeID == "" {
			httpError(w, "missing player or recipe id", nethttp.StatusBadRequest)
			return
		}
		available, reason := manager.IsAvailableToStudy(playerID, recipeID)
		payload := struct {
			RecipeID  string `json:"recipeId"`
			MayUse    bool   `json:"mayUse"`
			Studied   bool   `json:"studied"`
			Available bool   `json:"available"`
			Reason    string `json:"reason,omitempty"`
		}{
			RecipeID:  recipeID,
			MayUse:    manager.MayUse(playerID, recipeID),
			Studied:   manager.IsStudied(playerID, recipeID),
			Available: available,
		}
		if !available {
			payload.Reason = reason.Message()
		}
		writeJSONResponse(w, payload)
	})

	mux.HandleFunc("/recipes", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		playerID := playerIDFrom(r)
		if playerID == "" {
			httpError(w, "missing player id", nethttp.StatusBadRequest)
			return
		}
		var tags []string
		if raw := strings.TrimSpace(r.URL.Query().Get("tags")); raw != "" {
			tags = strings.Split(raw, ",")
		}
		entries := manager.ListRecipes(playerID, tags...)
		if entries == nil {
			entries = []*progression.Entry{}
		}
		writeJSONResponse(w, struct {
			Recipes []*progression.Entry `json:"recipes"`
		}{Recipes: entries})
	})

	mux.HandleFunc("/study", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodPost {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		playerID, recipeID, ok := decodeStudyRequest(w, r)
		if !ok {
			return
		}
		granted, reason := manager.Study(r.Context(), playerID, recipeID)
		writeJSONResponse(w, studyResultMessage{
			Ver: ProtocolVersion, Type: "studyResult",
			RecipeID: recipeID, OK: granted, Reason: reason.Message(),
		})
	})

	mux.HandleFunc("/study/reset", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodPost {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		playerID, recipeID, ok := decodeStudyRequest(w, r)
		if !ok {
			return
		}
		reset := manager.ResetStudy(r.Context(), playerID, recipeID)
		writeJSONResponse(w, studyResultMessage{
			Ver: ProtocolVersion, Type: "resetResult",
			RecipeID: recipeID, OK: reset,
		})
	})

	adminOnly := func(next nethttp.HandlerFunc) nethttp.HandlerFunc {
		return func(w nethttp.ResponseWriter, r *nethttp.Request) {
			if cfg.AdminToken == "" || r.Header.Get("X-Admin-Token") != cfg.AdminToken {
				httpError(w, "forbidden", nethttp.StatusForbidden)
				return
			}
			next(w, r)
		}
	}

	mux.HandleFunc("/admin/points", adminOnly(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodPost {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		var req struct {
			PlayerID   string `json:"playerId"`
			PointsType string `json:"pointsType"`
			Amount     int    `json:"amount"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		if req.PlayerID == "" {
			httpError(w, "missing player id", nethttp.StatusBadRequest)
			return
		}
		pointsType := economy.PointsType(req.PointsType)
		if pointsType == "" {
			pointsType = economy.PointsLearning
		}
		if req.Amount >= 0 {
			manager.GrantPoints(r.Context(), req.PlayerID, pointsType, req.Amount)
		} else {
			manager.RevokePoints(r.Context(), req.PlayerID, pointsType, -req.Amount)
		}
		writeJSONResponse(w, map[string]any{"status": "ok", "ledger": manager.Ledger(req.PlayerID)})
	}))

	mux.HandleFunc("/admin/study/reset", adminOnly(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodPost {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		playerID, recipeID, ok := decodeStudyRequest(w, r)
		if !ok {
			return
		}
		reset := manager.AdminReset(r.Context(), playerID, recipeID)
		writeJSONResponse(w, studyResultMessage{
			Ver: ProtocolVersion, Type: "resetResult",
			RecipeID: recipeID, OK: reset,
		})
	}))

	mux.HandleFunc("/admin/graph/reload", adminOnly(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodPost {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		if err := manager.ReloadGraph(); err != nil {
			logger.Printf("graph reload failed: %v", err)
			httpError(w, "reload failed", nethttp.StatusInternalServerError)
			return
		}
		writeJSONResponse(w, map[string]any{"status": "ok", "problems": manager.Problems()})
	}))

	mux.HandleFunc("/graph", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		switch r.Method {
		case nethttp.MethodGet:
			writeJSONResponse(w, manager.Graph().Export())
		default:
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/admin/graph/node", adminOnly(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		switch r.Method {
		case nethttp.MethodPost:
			var doc graph.NodeDocument
			if !decodeBody(w, r, &doc) {
				return
			}
			id := manager.Graph().UpsertNode(doc)
			writeJSONResponse(w, map[string]string{"status": "ok", "id": id})
		case nethttp.MethodDelete:
			id := strings.TrimSpace(r.URL.Query().Get("id"))
			if id == "" {
				httpError(w, "missing id", nethttp.StatusBadRequest)
				return
			}
			if !manager.Graph().RemoveNode(id) {
				httpError(w, "unknown node", nethttp.StatusNotFound)
				return
			}
			writeJSONResponse(w, map[string]string{"status": "ok"})
		default:
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
		}
	}))

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *nethttp.Request) bool {
			return true
		},
	}

	mux.HandleFunc("/ws", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		playerID := r.URL.Query().Get("id")
		if playerID == "" {
			httpError(w, "missing id", nethttp.StatusBadRequest)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Printf("upgrade failed for %s: %v", playerID, err)
			return
		}
		defer conn.Close()

		if err := manager.Join(playerID); err != nil {
			logger.Printf("join failed for %s: %v", playerID, err)
			message := websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "failed to load player")
			conn.WriteMessage(websocket.CloseMessage, message)
			return
		}
		defer func() {
			if err := manager.Leave(playerID); err != nil {
				logger.Printf("leave failed for %s: %v", playerID, err)
			}
		}()

		ctx := guard.WithActivePlayer(r.Context(), playerID)

		writeJSON := func(payload any) bool {
			data, err := json.Marshal(payload)
			if err != nil {
				logger.Printf("failed to marshal response for %s: %v", playerID, err)
				return true
			}
			return conn.WriteMessage(websocket.TextMessage, data) == nil
		}

		sendProgress := func() bool {
			return writeJSON(progressMessage{
				Ver:    ProtocolVersion,
				Type:   "progress",
				Nodes:  manager.PlayerProgress(playerID),
				Ledger: manager.Ledger(playerID),
			})
		}

		if !sendProgress() {
			return
		}

		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}

			var msg clientMessage
			if err := json.Unmarshal(payload, &msg); err != nil {
				logger.Printf("discarding malformed message from %s: %v", playerID, err)
				continue
			}

			switch msg.Type {
			case "study":
				granted, reason := manager.Study(ctx, playerID, msg.RecipeID)
				result := studyResultMessage{
					Ver: ProtocolVersion, Type: "studyResult",
					RecipeID: msg.RecipeID, OK: granted,
				}
				if !granted {
					result.Reason = reason.Message()
				}
				if !writeJSON(result) {
					return
				}
				if granted && !sendProgress() {
					return
				}
			case "reset":
				reset := manager.ResetStudy(ctx, playerID, msg.RecipeID)
				if !writeJSON(studyResultMessage{
					Ver: ProtocolVersion, Type: "resetResult",
					RecipeID: msg.RecipeID, OK: reset,
				}) {
					return
				}
				if reset && !sendProgress() {
					return
				}
			case "progress":
				if !sendProgress() {
					return
				}
			case "list":
				ids := make([]string, 0)
				for _, entry := range manager.ListRecipes(playerID, msg.Tags...) {
					ids = append(ids, entry.ID)
				}
				if gatingGuard != nil {
					ids = gatingGuard.FilterRecipes(ctx, ids)
				}
				if !writeJSON(struct {
					Ver     int      `json:"ver"`
					Type    string   `json:"type"`
					Recipes []string `json:"recipes"`
				}{Ver: ProtocolVersion, Type: "recipeList", Recipes: ids}) {
					return
				}
			case "heartbeat":
				if !writeJSON(heartbeatMessage{
					Ver:        ProtocolVersion,
					Type:       "heartbeat",
					ServerTime: time.Now().UnixMilli(),
					ClientTime: msg.SentAt,
				}) {
					return
				}
			default:
				logger.Printf("unknown message type %q from %s", msg.Type, playerID)
			}
		}
	})

	return mux
}

func playerIDFrom(r *nethttp.Request) string {
	if id := strings.TrimSpace(r.URL.Query().Get("id")); id != "" {
		return id
	}
	if r.Body == nil {
		return ""
	}
	defer r.Body.Close()
	var req struct {
		PlayerID string `json:"playerId"`
	}
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(&req); err != nil && err != io.EOF {
		return ""
	}
	return strings.TrimSpace(req.PlayerID)
}

func decodeStudyRequest(w nethttp.ResponseWriter, r *nethttp.Request) (playerID, recipeID string, ok bool) {
	var req struct {
		PlayerID string `json:"playerId"`
		RecipeID string `json:"recipeId"`
	}
	if !decodeBody(w, r, &req) {
		return "", "", false
	}
	req.PlayerID = strings.TrimSpace(req.PlayerID)
	req.RecipeID = strings.TrimSpace(req.RecipeID)
	if req.PlayerID == "" || req.RecipeID == "" {
		httpError(w, "missing player or recipe id", nethttp.StatusBadRequest)
		return "", "", false
	}
	return req.PlayerID, req.RecipeID, true
}

func decodeBody(w nethttp.ResponseWriter, r *nethttp.Request, out any) bool {
	if r.Body == nil {
		httpError(w, "missing body", nethttp.StatusBadRequest)
		return false
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(out); err != nil && err != io.EOF {
		httpError(w, "invalid payload", nethttp.StatusBadRequest)
		return false
	}
	return true
}

func writeJSONResponse(w nethttp.ResponseWriter, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		httpError(w, "failed to encode", nethttp.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func httpError(w nethttp.ResponseWriter, msg string, code int) {
	nethttp.Error(w, msg, code)
}

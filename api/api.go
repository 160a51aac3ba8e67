package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zlnvch/drawroom/api/rest"
	"github.com/zlnvch/drawroom/api/ws"
	"github.com/zlnvch/drawroom/cache"
	"github.com/zlnvch/drawroom/metrics"
	"github.com/zlnvch/drawroom/mq"
	"github.com/zlnvch/drawroom/service"
	"github.com/zlnvch/drawroom/store"
	"github.com/zlnvch/drawroom/worker"
)

type DrawroomAPI struct {
	Hub         *ws.Hub
	restHandler *rest.Handler
	wsHandler   *ws.Handler
	shutdownCtx context.Context
}

// NewDrawroomAPI starts the hub and, when a clear-room queue is given, its
// consumer. Both stop with shutdownCtx. drawroomCache and clearRoomQueue may
// be nil.
func NewDrawroomAPI(
	drawroomStore store.DrawroomStore,
	drawroomCache cache.DrawroomCache,
	clearRoomQueue mq.MessageQueue,
	jwtSecret []byte,
	m *metrics.Metrics,
	shutdownCtx context.Context,
) (*DrawroomAPI, error) {
	svc, err := service.NewService(drawroomStore, drawroomCache, clearRoomQueue, jwtSecret, m)
	if err != nil {
		return nil, err
	}

	wsHub := ws.NewHub(drawroomCache, m)
	go wsHub.Run(shutdownCtx)

	if clearRoomQueue != nil {
		mqConsumer := worker.NewMQConsumer(clearRoomQueue, drawroomStore, drawroomCache, m)
		go mqConsumer.Run(shutdownCtx)
	}

	return &DrawroomAPI{
		Hub:         wsHub,
		restHandler: rest.NewHandler(svc),
		wsHandler:   ws.NewHandler(svc, wsHub, m),
		shutdownCtx: shutdownCtx,
	}, nil
}

func (drawroomAPI *DrawroomAPI) RegisterRoutes(mux *http.ServeMux, originAllowed func(origin string) bool) {
	// Health check endpoint (no auth required)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /room", drawroomAPI.restHandler.HandleCreateRoom)
	mux.HandleFunc("GET /room/{slug}", drawroomAPI.restHandler.HandleGetRoom)
	mux.HandleFunc("GET /chats/{roomId}", drawroomAPI.restHandler.HandleListChats)
	mux.HandleFunc("POST /clear", drawroomAPI.restHandler.HandleClear)

	wsUpgrader := drawroomAPI.wsHandler.NewWsUpgrader(originAllowed)
	serveWS := func(w http.ResponseWriter, r *http.Request) {
		drawroomAPI.wsHandler.ServeWS(wsUpgrader, w, r, drawroomAPI.shutdownCtx)
	}
	// Drawing clients connect to the bare host
	mux.HandleFunc("GET /{$}", serveWS)
	mux.HandleFunc("GET /ws", serveWS)
}

// WithCORS answers preflight requests and sets CORS headers for allowed
// origins.
func WithCORS(next http.Handler, originAllowed func(origin string) bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && originAllowed(origin) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Add("Vary", "Origin")
			h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			h.Set("Access-Control-Allow-Methods", strings.Join([]string{http.MethodGet, http.MethodPost, http.MethodOptions}, ", "))
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

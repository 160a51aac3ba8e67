package rest

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/zlnvch/drawroom/models"
	"github.com/zlnvch/drawroom/service"
)

type Handler struct {
	Service *service.Service
}

func NewHandler(svc *service.Service) *Handler {
	return &Handler{Service: svc}
}

type createRoomRequest struct {
	Name string `json:"name"`
}

type createRoomResponse struct {
	RoomId string `json:"roomId"`
}

func (h *Handler) HandleCreateRoom(w http.ResponseWriter, r *http.Request) {
	userId, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := service.ValidateRoomName(req.Name); err != nil {
		h.sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	room, err := h.Service.CreateRoom(r.Context(), userId, req.Name)
	switch {
	case errors.Is(err, service.ErrRoomExists):
		h.sendError(w, http.StatusConflict, "Room already exists")
		return
	case errors.Is(err, service.ErrUserNotFound):
		h.sendError(w, http.StatusUnauthorized, "User not signed in")
		return
	case err != nil:
		log.Printf("CreateRoom failed: %v", err)
		h.sendError(w, http.StatusInternalServerError, "failed to create room")
		return
	}

	h.sendResponse(w, createRoomResponse{RoomId: room.Id})
}

type getRoomResponse struct {
	Room *models.Room `json:"room"`
}

func (h *Handler) HandleGetRoom(w http.ResponseWriter, r *http.Request) {
	room, err := h.Service.GetRoomBySlug(r.Context(), r.PathValue("slug"))
	if err != nil {
		log.Printf("GetRoomBySlug failed: %v", err)
		h.sendError(w, http.StatusInternalServerError, "failed to load room")
		return
	}
	h.sendResponse(w, getRoomResponse{Room: room})
}

type listChatsResponse struct {
	Messages []models.Chat `json:"messages"`
}

func (h *Handler) HandleListChats(w http.ResponseWriter, r *http.Request) {
	roomId := r.PathValue("roomId")
	if err := service.ValidateRoomId(roomId); err != nil {
		h.sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	chats, err := h.Service.ListChats(r.Context(), roomId)
	if err != nil {
		log.Printf("ListChats failed: %v", err)
		h.sendError(w, http.StatusInternalServerError, "failed to load chats")
		return
	}
	h.sendResponse(w, listChatsResponse{Messages: chats})
}

type clearRequest struct {
	RoomId models.RoomID `json:"roomId"`
}

func (h *Handler) HandleClear(w http.ResponseWriter, r *http.Request) {
	userId, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	var req clearRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	roomId := string(req.RoomId)
	if err := service.ValidateRoomId(roomId); err != nil {
		h.sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.Service.ClearRoom(r.Context(), userId, roomId); err != nil {
		log.Printf("ClearRoom failed: %v", err)
		h.sendError(w, http.StatusInternalServerError, "failed to clear room")
		return
	}
	h.sendResponse(w, messageResponse{Msg: "Cleared Canvas"})
}

type messageResponse struct {
	Msg string `json:"msg"`
}

func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request) (string, bool) {
	userId, err := h.Service.AuthenticateToken(h.getTokenFromAuthHeader(r))
	if err != nil {
		h.sendError(w, http.StatusUnauthorized, "invalid token")
		return "", false
	}
	return userId, true
}

func (h *Handler) sendResponse(w http.ResponseWriter, resp any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

func (h *Handler) sendError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(messageResponse{Msg: msg})
}

// getTokenFromAuthHeader accepts "Bearer <token>" or the bare token.
func (h *Handler) getTokenFromAuthHeader(r *http.Request) string {
	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	if authHeader == "" {
		return ""
	}
	const prefix = "Bearer "
	return strings.TrimSpace(strings.TrimPrefix(authHeader, prefix))
}

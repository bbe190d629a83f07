package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/cwrk-planet/collab-service/internal/domain"
	"github.com/cwrk-planet/collab-service/internal/pagination"
	"github.com/cwrk-planet/collab-service/internal/service"
	httpmw "github.com/cwrk-planet/collab-service/internal/transport/http/middleware"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	roomSvc   *service.RoomService
	memberSvc *service.MemberService
}

func NewHandler(rooms *service.RoomService, members *service.MemberService) *Handler {
	return &Handler{roomSvc: rooms, memberSvc: members}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// GET /rooms
func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	rooms := h.roomSvc.ListRooms()
	resp := RoomsListResponse{Items: make([]RoomItem, 0, len(rooms))}
	for _, rm := range rooms {
		resp.Items = append(resp.Items, RoomItem{ID: rm.ID, Participants: rm.Participants, Hosts: rm.Hosts})
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /rooms/{id}/participants — живой состав.
func (h *Handler) GetParticipants(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "id")
	ps, err := h.roomSvc.Participants(roomID)
	if err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "room not found"})
			return
		}
		httpmw.L(r.Context()).Error("handler.GetParticipants", "err", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, ParticipantsResponse{RoomID: roomID, Items: ps})
}

// GET /rooms/{id}/members?limit=&cursor= — сохранённые участники.
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	limit := pagination.DefaultLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid_limit"})
			return
		}
		limit = n
	}
	cursor := r.URL.Query().Get("cursor")

	items, next, err := h.memberSvc.ListMembers(r.Context(), chi.URLParam(r, "id"), limit, cursor)
	if err != nil {
		switch {
		case errors.Is(err, pagination.ErrInvalidCursor):
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid_cursor"})
		case errors.Is(err, domain.ErrRoomNotFound):
			writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "room not found"})
		default:
			httpmw.L(r.Context()).Error("handler.ListMembers", "err", err)
			writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		}
		return
	}

	resp := MembersResponse{Items: make([]MemberItem, 0, len(items)), NextCursor: next}
	for _, m := range items {
		resp.Items = append(resp.Items, MemberItem{
			UserID:   m.ExternalID,
			Name:     m.Name,
			Role:     m.Role,
			JoinedAt: m.JoinedAt,
			LastSeen: m.LastSeen,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

package client

import (
	"log/slog"

	"github.com/cwrk-planet/collab-service/internal/domain"
	"github.com/cwrk-planet/collab-service/internal/protocol"
	"github.com/cwrk-planet/collab-service/internal/workspace"
)

// readLoop — единственная горутина, применяющая входящие события подключения gen.
func (s *Session) readLoop(gen int, conn Conn) {
	for {
		msg, err := conn.Receive()
		if err != nil {
			s.connectionLost(gen, err)
			return
		}
		s.handle(gen, msg)
	}
}

func (s *Session) connectionLost(gen int, err error) {
	var conn Conn
	_ = s.update(func() (bool, error) {
		if gen != s.gen {
			return false, nil
		}
		slog.Info("client: connection lost", "room", s.roomID, "err", err)
		conn = s.conn
		s.resetLocked()
		return true, nil
	})
	if conn != nil {
		_ = conn.Close()
	}
}

func (s *Session) handle(gen int, msg protocol.Message) {
	switch msg.Type {
	case protocol.TypeConnected:
		var p protocol.ConnectedPayload
		if msg.Decode(&p) == nil {
			s.remote(gen, func() bool {
				s.connID = p.ConnectionID
				s.role = ownRole(s.users, s.connID, s.role, false)
				return true
			})
		}

	case protocol.TypeUserJoined, protocol.TypeUserLeft:
		var p protocol.MembershipPayload
		if msg.Decode(&p) == nil {
			left := msg.Type == protocol.TypeUserLeft
			s.remote(gen, func() bool {
				s.users = p.Participants
				s.role = ownRole(p.Participants, s.connID, s.role, left)
				return true
			})
		}

	case protocol.TypePermissionDenied:
		var p protocol.PermissionDeniedPayload
		if msg.Decode(&p) == nil {
			slog.Warn("client: permission denied", "action", p.Action, "reason", p.Reason)
			if s.opts.OnDenied != nil {
				s.opts.OnDenied(p)
			}
		}

	case protocol.TypeRequestContent:
		s.answerContentRequest(gen)

	case protocol.TypeRoomContent:
		var p protocol.RoomContentPayload
		if msg.Decode(&p) == nil && len(p.Files) > 0 {
			s.remote(gen, func() bool {
				s.commitLocked(workspace.New(p.Files, p.ActiveFileID), OriginRemote, "", nil)
				return true
			})
		}

	case protocol.TypeFileChange:
		var p protocol.FileChangePayload
		if msg.Decode(&p) == nil {
			s.applyRemote(gen, func(w workspace.Workspace) (workspace.Workspace, bool) {
				return w.ApplyContent(p.FileID, p.Content)
			})
		}

	case protocol.TypeFileCreate:
		var p protocol.FileCreatePayload
		if msg.Decode(&p) == nil {
			s.applyRemote(gen, func(w workspace.Workspace) (workspace.Workspace, bool) {
				return w.Insert(p.File)
			})
		}

	case protocol.TypeFileRename:
		var p protocol.FileRenamePayload
		if msg.Decode(&p) == nil {
			s.applyRemote(gen, func(w workspace.Workspace) (workspace.Workspace, bool) {
				return w.ApplyRename(p.FileID, p.NewName, p.Language)
			})
		}

	case protocol.TypeFileDelete:
		var p protocol.FileDeletePayload
		if msg.Decode(&p) == nil {
			s.applyRemote(gen, func(w workspace.Workspace) (workspace.Workspace, bool) {
				return w.ApplyDelete(p.FileID)
			})
		}
	}
}

// remote выполняет fn, только если событие пришло по текущему подключению.
func (s *Session) remote(gen int, fn func() bool) {
	_ = s.update(func() (bool, error) {
		if gen != s.gen {
			return false, nil
		}
		return fn(), nil
	})
}

func (s *Session) applyRemote(gen int, apply func(workspace.Workspace) (workspace.Workspace, bool)) {
	s.remote(gen, func() bool {
		next, ok := apply(s.ws)
		if !ok {
			return false
		}
		s.commitLocked(next, OriginRemote, "", nil)
		return true
	})
}

// answerContentRequest: отвечает снапшотом, если может править и есть что отдать.
func (s *Session) answerContentRequest(gen int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen || s.conn == nil || !s.role.CanMutate() || s.ws.Empty() {
		return
	}
	err := s.conn.Send(protocol.MustNew(protocol.TypeRoomContent, protocol.RoomContentPayload{
		RoomID:       s.roomID,
		Files:        s.ws.Files(),
		ActiveFileID: s.ws.ActiveID(),
	}))
	if err != nil {
		slog.Warn("client: room-content failed", "room", s.roomID, "err", err)
	}
}

// ownRole ищет себя в списке. Если себя нет: после user-left роль
// сохраняется, в остальных случаях сбрасывается.
func ownRole(ps []domain.Participant, connID string, prev domain.Role, left bool) domain.Role {
	if connID != "" {
		for _, p := range ps {
			if p.ConnID == connID {
				return p.Role
			}
		}
	}
	if left {
		return prev
	}
	return ""
}

// Package client — клиентская сессия совместного редактирования: локальный
// набор файлов, вход в комнату, синхронизация содержимого и права по роли.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cwrk-planet/collab-service/internal/domain"
	"github.com/cwrk-planet/collab-service/internal/protocol"
	"github.com/cwrk-planet/collab-service/internal/sandbox"
	"github.com/cwrk-planet/collab-service/internal/workspace"

	"github.com/cenkalti/backoff/v5"
)

// Origin — откуда пришло изменение. Наружу уходят только локальные.
type Origin int

const (
	OriginLocal Origin = iota
	OriginRemote
)

// SyncState — стадия получения содержимого комнаты.
type SyncState string

const (
	SyncIdle    SyncState = "idle"    // не в комнате
	SyncLoading SyncState = "loading" // ждём room-content
	SyncReady   SyncState = "ready"   // файлы есть
	SyncEmpty   SyncState = "empty"   // попытки кончились, файлов нет
)

var (
	ErrNoProject = errors.New("no project selected")
	ErrNoActive  = errors.New("no active file")

	errWaiting   = errors.New("waiting for room content")
	errNoContent = errors.New("no room content")
)

// Identity — durable-личность для join-room.
type Identity struct {
	DurableID string
	Email     string
}

// ProjectSaver сохраняет набор файлов в проект.
type ProjectSaver interface {
	SaveFiles(ctx context.Context, projectID string, files []domain.File) error
}

// Runner исполняет код активного файла.
type Runner interface {
	Execute(ctx context.Context, language, code string) (sandbox.Output, error)
}

type Options struct {
	RetryInterval time.Duration // 500ms
	RetryAttempts int           // 8 повторов после первого запроса

	// Identity вызывается перед каждым join-room. Ошибка — анонимный вход.
	Identity func(ctx context.Context) (Identity, error)

	Projects ProjectSaver
	Runner   Runner

	OnChange func(State)
	OnDenied func(protocol.PermissionDeniedPayload)
}

// State — снапшот сессии для наблюдателей.
type State struct {
	Files        []domain.File
	ActiveFileID string
	ProjectID    string
	RoomID       string
	ConnectionID string
	Role         domain.Role
	Users        []domain.Participant
	Sync         SyncState
	Live         bool
}

type Session struct {
	dialer Dialer
	opts   Options

	mu        sync.Mutex
	ws        workspace.Workspace
	projectID string
	conn      Conn
	gen       int // номер подключения; события старых подключений игнорируются
	roomID    string
	connID    string
	role      domain.Role
	users     []domain.Participant
	sync      SyncState
	stopRetry context.CancelFunc
}

func NewSession(d Dialer, opts Options) *Session {
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 500 * time.Millisecond
	}
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = 8
	}
	return &Session{dialer: d, opts: opts, sync: SyncIdle}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Session) stateLocked() State {
	return State{
		Files:        s.ws.Files(),
		ActiveFileID: s.ws.ActiveID(),
		ProjectID:    s.projectID,
		RoomID:       s.roomID,
		ConnectionID: s.connID,
		Role:         s.role,
		Users:        append([]domain.Participant(nil), s.users...),
		Sync:         s.sync,
		Live:         s.conn != nil,
	}
}

// update выполняет fn под локом и, если fn что-то поменяла, уведомляет OnChange.
func (s *Session) update(fn func() (changed bool, err error)) error {
	s.mu.Lock()
	changed, err := fn()
	st := s.stateLocked()
	s.mu.Unlock()

	if changed && s.opts.OnChange != nil {
		s.opts.OnChange(st)
	}
	return err
}

// ---------- room lifecycle ----------

// JoinRoom закрывает текущее подключение, открывает новое, отправляет
// join-room и запускает цикл запроса содержимого. Локальные файлы сохраняются.
func (s *Session) JoinRoom(ctx context.Context, roomID, displayName string) error {
	roomID, displayName = strings.TrimSpace(roomID), strings.TrimSpace(displayName)
	if roomID == "" || displayName == "" {
		return domain.ErrEmptyJoin
	}

	s.disconnect(false)

	conn, err := s.dialer.Dial(ctx)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	join := protocol.JoinRoomPayload{RoomID: roomID, Username: displayName}
	if s.opts.Identity != nil {
		if id, err := s.opts.Identity(ctx); err != nil {
			slog.Warn("client: identity lookup failed, joining anonymously", "room", roomID, "err", err)
		} else {
			join.DurableID, join.Email = id.DurableID, id.Email
		}
	}

	retryCtx, stop := context.WithCancel(context.Background())
	var gen int
	var prev Conn
	err = s.update(func() (bool, error) {
		// параллельный JoinRoom мог успеть поставить своё подключение
		if s.conn != nil {
			prev = s.conn
			s.resetLocked()
		}
		s.gen++
		gen = s.gen
		s.conn = conn
		s.roomID = roomID
		s.connID, s.role, s.users = "", "", nil
		s.stopRetry = stop
		if s.ws.Empty() {
			s.sync = SyncLoading
		} else {
			s.sync = SyncReady
		}
		return true, conn.Send(protocol.MustNew(protocol.TypeJoinRoom, join))
	})
	if prev != nil {
		_ = prev.Close()
	}
	if err != nil {
		stop()
		s.disconnect(true)
		return fmt.Errorf("join-room: %w", err)
	}

	go s.readLoop(gen, conn)
	go s.requestContent(retryCtx, gen)
	return nil
}

// LeaveRoom уведомляет gateway и закрывает подключение. Файлы остаются.
func (s *Session) LeaveRoom() {
	s.disconnect(true)
}

func (s *Session) disconnect(notify bool) {
	var conn Conn
	_ = s.update(func() (bool, error) {
		if s.conn == nil {
			return false, nil
		}
		conn = s.conn
		if notify {
			_ = conn.Send(protocol.MustNew(protocol.TypeLeaveRoom, protocol.RoomPayload{RoomID: s.roomID}))
		}
		s.resetLocked()
		return true, nil
	})
	if conn != nil {
		_ = conn.Close()
	}
}

func (s *Session) resetLocked() {
	if s.stopRetry != nil {
		s.stopRetry()
		s.stopRetry = nil
	}
	s.gen++
	s.conn = nil
	s.roomID, s.connID, s.role, s.users = "", "", "", nil
	s.sync = SyncIdle
}

// SetUserRole просит gateway сменить роль участника. Права проверяет сервер.
func (s *Session) SetUserRole(targetConnID string, role domain.Role) error {
	if !role.Valid() {
		return domain.ErrInvalidRole
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil || s.roomID == "" {
		return domain.ErrNotConnected
	}
	return s.conn.Send(protocol.MustNew(protocol.TypeSetRole, protocol.SetRolePayload{
		RoomID:             s.roomID,
		TargetConnectionID: targetConnID,
		Role:               role,
	}))
}

// requestContent: первый request-content сразу, затем повтор каждые
// RetryInterval, пока не появятся файлы или не кончатся попытки.
func (s *Session) requestContent(ctx context.Context, gen int) {
	sent := 0
	op := func() (struct{}, error) {
		done, err := s.contentArrived(gen)
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		if done {
			return struct{}{}, nil
		}
		if sent > s.opts.RetryAttempts {
			return struct{}{}, backoff.Permanent(errNoContent)
		}
		sent++
		if err := s.send(gen, protocol.TypeRequestContent, protocol.RoomPayload{RoomID: s.currentRoom()}); err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, errWaiting
	}

	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(s.opts.RetryInterval)),
		backoff.WithMaxTries(uint(s.opts.RetryAttempts+2)),
	)
	if errors.Is(err, errNoContent) || errors.Is(err, errWaiting) {
		_ = s.update(func() (bool, error) {
			if gen != s.gen || !s.ws.Empty() {
				return false, nil
			}
			s.sync = SyncEmpty
			return true, nil
		})
	}
}

func (s *Session) contentArrived(gen int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return false, domain.ErrNotConnected
	}
	return !s.ws.Empty(), nil
}

func (s *Session) currentRoom() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomID
}

func (s *Session) send(gen int, typ string, payload any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen || s.conn == nil {
		return domain.ErrNotConnected
	}
	return s.conn.Send(protocol.MustNew(typ, payload))
}

// ---------- local file operations ----------

// canMutateLocked: вне комнаты править можно всегда, в комнате — не viewer.
func (s *Session) canMutateLocked() error {
	if s.roomID != "" && s.role == domain.RoleViewer {
		return domain.ErrPermissionDenied
	}
	return nil
}

// commitLocked применяет новый workspace; Local-изменение уходит в комнату.
func (s *Session) commitLocked(next workspace.Workspace, origin Origin, typ string, payload any) {
	s.ws = next
	if !s.ws.Empty() && (s.sync == SyncLoading || s.sync == SyncEmpty) {
		s.sync = SyncReady
	}
	if origin != OriginLocal || typ == "" || s.conn == nil || s.roomID == "" {
		return
	}
	if err := s.conn.Send(protocol.MustNew(typ, payload)); err != nil {
		slog.Warn("client: relay failed", "room", s.roomID, "type", typ, "err", err)
	}
}

func (s *Session) CreateFile(name string) (domain.File, error) {
	var f domain.File
	err := s.update(func() (bool, error) {
		if err := s.canMutateLocked(); err != nil {
			return false, err
		}
		next, created, err := s.ws.Create(name)
		if err != nil {
			return false, err
		}
		f = created
		s.commitLocked(next, OriginLocal, protocol.TypeFileCreate, protocol.FileCreatePayload{RoomID: s.roomID, File: created})
		return true, nil
	})
	return f, err
}

func (s *Session) RenameFile(id, newName string) error {
	return s.update(func() (bool, error) {
		if err := s.canMutateLocked(); err != nil {
			return false, err
		}
		next, f, err := s.ws.Rename(id, newName)
		if err != nil {
			return false, err
		}
		s.commitLocked(next, OriginLocal, protocol.TypeFileRename, protocol.FileRenamePayload{
			RoomID:   s.roomID,
			FileID:   f.ID,
			NewName:  f.Name,
			Language: f.Language,
		})
		return true, nil
	})
}

func (s *Session) DeleteFile(id string) error {
	return s.update(func() (bool, error) {
		if err := s.canMutateLocked(); err != nil {
			return false, err
		}
		next, err := s.ws.Delete(id)
		if err != nil {
			return false, err
		}
		s.commitLocked(next, OriginLocal, protocol.TypeFileDelete, protocol.FileDeletePayload{RoomID: s.roomID, FileID: id})
		return true, nil
	})
}

func (s *Session) UpdateContent(id, content string) error {
	return s.update(func() (bool, error) {
		if err := s.canMutateLocked(); err != nil {
			return false, err
		}
		next, err := s.ws.UpdateContent(id, content)
		if err != nil {
			return false, err
		}
		s.commitLocked(next, OriginLocal, protocol.TypeFileChange, protocol.FileChangePayload{RoomID: s.roomID, FileID: id, Content: content})
		return true, nil
	})
}

// SetActiveFile — только локально, viewer тоже может переключать файлы.
func (s *Session) SetActiveFile(id string) error {
	return s.update(func() (bool, error) {
		next, err := s.ws.SetActive(id)
		if err != nil {
			return false, err
		}
		s.ws = next
		return true, nil
	})
}

// ReplaceFiles загружает набор файлов проекта (без рассылки).
func (s *Session) ReplaceFiles(projectID string, files []domain.File, activeID string) {
	_ = s.update(func() (bool, error) {
		s.projectID = projectID
		s.commitLocked(workspace.New(files, activeID), OriginRemote, "", nil)
		return true, nil
	})
}

// SaveProject отправляет текущий набор файлов в CRUD проектов.
func (s *Session) SaveProject(ctx context.Context) error {
	s.mu.Lock()
	id, files := s.projectID, s.ws.Files()
	s.mu.Unlock()

	if id == "" {
		return ErrNoProject
	}
	if s.opts.Projects == nil {
		return fmt.Errorf("save project: %w", ErrNoProject)
	}
	return s.opts.Projects.SaveFiles(ctx, id, files)
}

// RunActive исполняет активный файл.
func (s *Session) RunActive(ctx context.Context) (sandbox.Output, error) {
	s.mu.Lock()
	f, ok := s.ws.Active()
	s.mu.Unlock()

	if !ok {
		return sandbox.Output{}, ErrNoActive
	}
	if s.opts.Runner == nil {
		return sandbox.Output{IsError: true, Message: sandbox.ErrUnreachable.Error()}, sandbox.ErrUnreachable
	}
	return s.opts.Runner.Execute(ctx, f.Language, f.Content)
}

package domain

import "errors"

// валидация файлов
var (
	ErrInvalidFileName      = errors.New("invalid file name")
	ErrUnsupportedExtension = errors.New("unsupported file extension")
	ErrDuplicateFileName    = errors.New("file name already exists")
	ErrLastFile             = errors.New("cannot delete the last file")
	ErrFileNotFound         = errors.New("file not found")
)

// права и membership
var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrNotHost          = errors.New("only host can change roles")
	ErrSoleHost         = errors.New("cannot demote the only host")
	ErrInvalidRole      = errors.New("invalid role")
	ErrNotInRoom        = errors.New("participant not in the room")
	ErrEmptyJoin        = errors.New("room id and display name are required")
	ErrRoomNotFound     = errors.New("room not found")
	ErrNotConnected     = errors.New("not connected to a room")
)

// durable-слой
var (
	ErrUserNotFound   = errors.New("user not found")
	ErrMemberNotFound = errors.New("room member not found")
)

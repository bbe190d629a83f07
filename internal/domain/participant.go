package domain

import "strings"

type Role string

const (
	RoleHost   Role = "host"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// ParseRole принимает только три известные роли (регистр игнорируется).
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleHost, RoleEditor, RoleViewer:
		return r, nil
	default:
		return "", ErrInvalidRole
	}
}

// Valid — точное совпадение с одной из ролей; для ввода извне есть ParseRole.
func (r Role) Valid() bool {
	switch r {
	case RoleHost, RoleEditor, RoleViewer:
		return true
	default:
		return false
	}
}

// CanMutate: host и editor могут менять содержимое комнаты.
func (r Role) CanMutate() bool {
	return r == RoleHost || r == RoleEditor
}

func (r Role) IsHost() bool { return r == RoleHost }

// Participant — живое подключение в комнате.
type Participant struct {
	ConnID        string `json:"id"`
	DisplayName   string `json:"username"`
	Role          Role   `json:"role"`
	DurableUserID string `json:"-"`
	Email         string `json:"-"`
}

func (p Participant) Durable() bool { return p.DurableUserID != "" }

// HostCount считает host-ов в снапшоте.
func HostCount(ps []Participant) int {
	n := 0
	for _, p := range ps {
		if p.Role.IsHost() {
			n++
		}
	}
	return n
}

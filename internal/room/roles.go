package room

import "github.com/cwrk-planet/collab-service/internal/domain"

// Occupancy — сколько участников уже есть в комнате, не считая входящего:
// живых подключений для анонимного входа, сохранённых записей для durable.
type Occupancy int

// AssignRole: пустая комната — host, иначе editor. Для durable-входа это
// роль новой записи; существующая запись вернёт сохранённую роль.
func AssignRole(o Occupancy) domain.Role {
	if o == 0 {
		return domain.RoleHost
	}
	return domain.RoleEditor
}

// CheckRoleChange проверяет смену роли над снапшотом участников.
func CheckRoleChange(members []domain.Participant, requesterID, targetID string, role domain.Role) error {
	requester, ok := find(members, requesterID)
	if !ok {
		return domain.ErrNotInRoom
	}
	if !requester.Role.IsHost() {
		return domain.ErrNotHost
	}
	if !role.Valid() {
		return domain.ErrInvalidRole
	}
	target, ok := find(members, targetID)
	if !ok {
		return domain.ErrNotInRoom
	}
	if target.Role.IsHost() && role != domain.RoleHost && domain.HostCount(members) <= 1 {
		return domain.ErrSoleHost
	}
	return nil
}

func find(members []domain.Participant, connID string) (domain.Participant, bool) {
	for _, m := range members {
		if m.ConnID == connID {
			return m, true
		}
	}
	return domain.Participant{}, false
}

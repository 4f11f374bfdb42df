package engine

// NewState opens a room in the lobby phase with host as its only member.
func NewState(code string, host Member, rules Rules) State {
	host.Role = RoleHost
	return State{
		Code:    code,
		Phase:   PhaseLobby,
		Members: []Member{host},
		Round:   Round{Phase: RoundIdle, Hands: map[string]Hand{}},
		Rules:   rules,
	}
}

// Names lists member display names in join order.
func (s State) Names() []string {
	names := make([]string, 0, len(s.Members))
	for _, m := range s.Members {
		names = append(names, m.Name)
	}
	return names
}

func (s State) IndexOf(id string) int {
	for i, m := range s.Members {
		if m.ID == id {
			return i
		}
	}
	return -1
}

func (s State) Member(id string) (Member, bool) {
	if i := s.IndexOf(id); i >= 0 {
		return s.Members[i], true
	}
	return Member{}, false
}

func (s State) HostID() string {
	for _, m := range s.Members {
		if m.Role == RoleHost {
			return m.ID
		}
	}
	return ""
}

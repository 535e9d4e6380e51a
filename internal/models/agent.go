package models

import "strings"

// Agent is a configured mail-addressable agent. Policy fields are raw
// configuration; core/policy normalizes them before evaluation.
type Agent struct {
	ID           string
	Username     string // local part of the agent's address
	DisplayName  string
	Address      string // full mail address
	TeamID       string
	UserID       string
	Persona      string
	Instructions string
	Model        string
	Tools        []string

	InboundRule   string
	OutboundRule  string
	InboundAllow  []string
	OutboundAllow []string

	MaxRounds      int
	TimeoutMinutes int
	MaxDepth       int // delegation chain depth bound

	Disabled bool
}

// Team is a named roster of member addresses.
type Team struct {
	ID      string
	Name    string
	Members []string
}

// Directory is a read-only snapshot of the agent and team registry,
// passed explicitly into policy and routing so evaluation is a pure
// function over supplied data.
type Directory struct {
	Agents []Agent
	Teams  []Team
}

// AgentByUsername returns the agent whose username matches the given
// address local part, case-insensitively. Returns nil when unknown.
func (d *Directory) AgentByUsername(localPart string) *Agent {
	want := strings.ToLower(strings.TrimSpace(localPart))
	for i := range d.Agents {
		if strings.ToLower(d.Agents[i].Username) == want {
			return &d.Agents[i]
		}
	}
	return nil
}

// AgentByAddress returns the agent with the given full address, or nil.
func (d *Directory) AgentByAddress(addr string) *Agent {
	want := strings.ToLower(strings.TrimSpace(addr))
	for i := range d.Agents {
		if strings.ToLower(d.Agents[i].Address) == want {
			return &d.Agents[i]
		}
	}
	return nil
}

// AgentByID returns the agent with the given ID, or nil.
func (d *Directory) AgentByID(id string) *Agent {
	for i := range d.Agents {
		if d.Agents[i].ID == id {
			return &d.Agents[i]
		}
	}
	return nil
}

// IsTeamMember reports whether addr is on the roster of the given team.
func (d *Directory) IsTeamMember(teamID, addr string) bool {
	want := strings.ToLower(strings.TrimSpace(addr))
	for _, t := range d.Teams {
		if t.ID != teamID {
			continue
		}
		for _, m := range t.Members {
			if strings.ToLower(strings.TrimSpace(m)) == want {
				return true
			}
		}
	}
	return false
}

// LocalPart extracts the part of a mail address before the @.
// "Jane <jane@example.com>" and "jane@example.com" both yield "jane".
func LocalPart(addr string) string {
	addr = strings.TrimSpace(addr)
	if start := strings.LastIndex(addr, "<"); start >= 0 {
		if end := strings.LastIndex(addr, ">"); end > start {
			addr = addr[start+1 : end]
		}
	}
	if at := strings.Index(addr, "@"); at >= 0 {
		return strings.ToLower(addr[:at])
	}
	return strings.ToLower(addr)
}

// BareAddress strips a display name wrapper from a mail address.
func BareAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	if start := strings.LastIndex(addr, "<"); start >= 0 {
		if end := strings.LastIndex(addr, ">"); end > start {
			addr = addr[start+1 : end]
		}
	}
	return strings.ToLower(strings.TrimSpace(addr))
}

package config

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/example/courier/internal/models"
)

// Roster is a YAML seed file declaring agents and teams. Operators
// import it once; the database is authoritative afterwards.
type Roster struct {
	Agents []RosterAgent `yaml:"agents"`
	Teams  []RosterTeam  `yaml:"teams"`
}

// RosterAgent is one agent declaration.
type RosterAgent struct {
	ID           string   `yaml:"id"`
	Username     string   `yaml:"username"`
	DisplayName  string   `yaml:"display_name"`
	Address      string   `yaml:"address"`
	Team         string   `yaml:"team"`
	User         string   `yaml:"user"`
	Persona      string   `yaml:"persona"`
	Instructions string   `yaml:"instructions"`
	Model        string   `yaml:"model"`
	Tools        []string `yaml:"tools"`

	InboundRule   string   `yaml:"inbound_rule"`
	OutboundRule  string   `yaml:"outbound_rule"`
	InboundAllow  []string `yaml:"inbound_allow"`
	OutboundAllow []string `yaml:"outbound_allow"`

	MaxRounds      int `yaml:"max_rounds"`
	TimeoutMinutes int `yaml:"timeout_minutes"`
	MaxDepth       int `yaml:"max_depth"`

	Disabled bool `yaml:"disabled"`
}

// RosterTeam is one team declaration.
type RosterTeam struct {
	ID      string   `yaml:"id"`
	Name    string   `yaml:"name"`
	Members []string `yaml:"members"`
}

// LoadRoster parses a YAML roster file into directory models. Missing
// ids are minted so re-imports of the same file stay stable only when
// ids are declared.
func LoadRoster(path string) ([]models.Agent, []models.Team, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read roster: %w", err)
	}
	return ParseRoster(data)
}

// ParseRoster parses roster YAML.
func ParseRoster(data []byte) ([]models.Agent, []models.Team, error) {
	var roster Roster
	if err := yaml.Unmarshal(data, &roster); err != nil {
		return nil, nil, fmt.Errorf("failed to parse roster: %w", err)
	}

	agents := make([]models.Agent, 0, len(roster.Agents))
	for _, ra := range roster.Agents {
		if ra.Username == "" || ra.Address == "" {
			return nil, nil, fmt.Errorf("roster agent %q needs username and address", ra.Username)
		}
		id := ra.ID
		if id == "" {
			id = uuid.New().String()
		}
		agents = append(agents, models.Agent{
			ID:             id,
			Username:       ra.Username,
			DisplayName:    ra.DisplayName,
			Address:        ra.Address,
			TeamID:         ra.Team,
			UserID:         ra.User,
			Persona:        ra.Persona,
			Instructions:   ra.Instructions,
			Model:          ra.Model,
			Tools:          ra.Tools,
			InboundRule:    ra.InboundRule,
			OutboundRule:   ra.OutboundRule,
			InboundAllow:   ra.InboundAllow,
			OutboundAllow:  ra.OutboundAllow,
			MaxRounds:      ra.MaxRounds,
			TimeoutMinutes: ra.TimeoutMinutes,
			MaxDepth:       ra.MaxDepth,
			Disabled:       ra.Disabled,
		})
	}

	teams := make([]models.Team, 0, len(roster.Teams))
	for _, rt := range roster.Teams {
		if rt.ID == "" || rt.Name == "" {
			return nil, nil, fmt.Errorf("roster team %q needs id and name", rt.Name)
		}
		teams = append(teams, models.Team{ID: rt.ID, Name: rt.Name, Members: rt.Members})
	}

	return agents, teams, nil
}

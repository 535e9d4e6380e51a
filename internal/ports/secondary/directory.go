package secondary

import (
	"context"

	"github.com/example/courier/internal/models"
)

// DirectoryProvider defines the secondary port for the agent and team
// registry. The engine takes a point-in-time snapshot per inbound
// message and passes it down explicitly, so policy and routing stay
// pure functions over supplied data.
type DirectoryProvider interface {
	// Snapshot returns the current agents and teams.
	Snapshot(ctx context.Context) (*models.Directory, error)

	// SaveAgent inserts or updates an agent definition.
	SaveAgent(ctx context.Context, agent models.Agent) error

	// SaveTeam inserts or updates a team and its roster.
	SaveTeam(ctx context.Context, team models.Team) error
}

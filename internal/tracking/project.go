package tracking

import (
	"context"
	"fmt"

	"intake/internal/config"
	"intake/internal/services"
)

// ResolveProject returns the ref every lookup and publish is scoped to.
// A configured project_id is trusted as-is; otherwise the project is looked
// up by name, and a miss is a configuration error because nothing downstream
// can run without a project.
func ResolveProject(ctx context.Context, client Client, cfg *config.Config) (EntityRef, error) {
	if cfg.Tracking.ProjectID > 0 {
		return EntityRef{Type: "Project", ID: cfg.Tracking.ProjectID, Name: cfg.Tracking.ProjectName}, nil
	}

	name := cfg.Tracking.ProjectName
	if name == "" {
		return EntityRef{}, services.Wrap(services.ErrConfiguration, "tracking", "resolve project",
			"Set tracking.project_id or tracking.project_name in the configuration", nil)
	}

	entity, err := client.FindOne(ctx, "Project", []Filter{Eq("name", name)}, []string{"name"})
	if err != nil {
		return EntityRef{}, fmt.Errorf("resolve project %q: %w", name, err)
	}
	if entity == nil {
		return EntityRef{}, services.Wrap(services.ErrConfiguration, "tracking", "resolve project",
			fmt.Sprintf("No project named %q exists in the tracking service", name), nil)
	}
	return entity.Ref(), nil
}

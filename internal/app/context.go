// Package app wires the workspace pieces (database, config, engine) for
// the CLI and the server command.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"caseline/internal/config"
	"caseline/internal/db"
	"caseline/internal/domain"
	"caseline/internal/engine"
	"caseline/internal/migrate"
	"caseline/internal/repo"
)

// Context is an opened workspace.
type Context struct {
	Workspace string
	DB        *sql.DB
	Config    *config.Config
	Engine    engine.Engine
}

// Open opens the workspace database, runs migrations and loads the
// config file, falling back to defaults when caseline.yml is absent.
func Open(workspace string) (*Context, error) {
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &Context{
		Workspace: workspace,
		DB:        conn,
		Config:    cfg,
		Engine:    engine.New(conn, cfg),
	}, nil
}

func (c *Context) Close() error {
	if c == nil || c.DB == nil {
		return nil
	}
	return c.DB.Close()
}

// EnsureOfficer creates the acting officer on first use so a fresh
// workspace works without a separate registration step. Existing
// officers are left untouched.
func (c *Context) EnsureOfficer(ctx context.Context, actorID, role string) (domain.Officer, error) {
	o, err := c.Engine.Repo.GetOfficer(ctx, actorID)
	if err == nil {
		return o, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return domain.Officer{}, err
	}
	if role == "" {
		role = string(engine.RoleAdmin)
	}
	o = domain.Officer{
		ID:          actorID,
		DisplayName: actorID,
		Role:        role,
		CreatedAt:   time.Now().UTC().Format(time.RFC3339),
	}
	if err := c.Engine.Repo.InsertOfficer(ctx, o); err != nil {
		return domain.Officer{}, err
	}
	return o, nil
}

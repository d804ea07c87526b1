package main

import (
	"context"
	"fmt"

	"github.com/MarkoPoloResearchLab/ninwallet/internal/database"
	"github.com/MarkoPoloResearchLab/ninwallet/internal/store/gormstore"
)

func runMigrate(ctx context.Context, databaseURL string) error {
	if databaseURL == "" {
		databaseURL = defaultDatabaseURL
	}
	gormDB, cleanup, _, err := database.Open(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("database open: %w", err)
	}
	defer func() { _ = cleanup() }()
	if err := gormstore.AutoMigrate(gormDB); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

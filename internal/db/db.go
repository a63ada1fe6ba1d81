package db

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/npcforge/npcforge/internal/chat"
	"github.com/npcforge/npcforge/internal/npc"
	"github.com/npcforge/npcforge/internal/users"
)

// Connect opens a gorm connection for the configured driver.
func Connect(driver, dsn string) (*gorm.DB, error) {
	var dial gorm.Dialector
	switch driver {
	case "sqlite":
		dial = sqlite.Open(dsn)
	case "", "mysql":
		dial = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("db: unsupported driver %q", driver)
	}

	gdb, err := gorm.Open(dial, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("db: open: %w", err)
	}
	return gdb, nil
}

// Migrate creates or updates every table the application owns.
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&users.User{},
		&npc.Npc{},
		&chat.Chat{},
		&chat.Message{},
	)
}

package cli

import (
	"errors"
	"fmt"
	"io"
)

// Migrator applies schema migrations.
type Migrator interface {
	Up() error
	Down() error
	Version() (uint, bool, error)
}

// RunMigrate executes a migrate subcommand: "up", "down" or "version".
func RunMigrate(m Migrator, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errors.New("usage: migrate up|down|version")
	}
	switch args[0] {
	case "up":
		if err := m.Up(); err != nil {
			return err
		}
	case "down":
		if err := m.Down(); err != nil {
			return err
		}
	case "version":
	default:
		return fmt.Errorf("migrate: unknown command %q", args[0])
	}
	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "schema version %d (dirty=%t)\n", version, dirty)
	return err
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shiv248/kolabcore/pkg/config"
	"github.com/shiv248/kolabcore/pkg/database"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that the configured environment is usable",
	Long: `doctor loads the configuration the same way serve would and runs a
handful of sanity checks: that the config file (if any) parses, and that the
configured database (if any) can be opened and migrated.`,
	RunE: runDoctor,
}

type doctorCheck struct {
	name string
	err  error
}

func runDoctor(cmd *cobra.Command, args []string) error {
	var checks []doctorCheck

	cfg, err := config.Load(configPath)
	checks = append(checks, doctorCheck{"config loads", err})

	if err == nil && cfg.Database.SQLiteURI != "" {
		db, dbErr := database.New(cfg.Database.SQLiteURI)
		checks = append(checks, doctorCheck{fmt.Sprintf("database opens (%s)", cfg.Database.SQLiteURI), dbErr})
		if dbErr == nil {
			_, countErr := db.Count()
			checks = append(checks, doctorCheck{"database query", countErr})
			db.Close()
		}
	} else if err == nil {
		checks = append(checks, doctorCheck{"database (not configured, skipped)", nil})
	}

	failed := false
	for _, c := range checks {
		if c.err != nil {
			failed = true
			fmt.Printf("FAIL  %s: %v\n", c.name, c.err)
		} else {
			fmt.Printf("OK    %s\n", c.name)
		}
	}

	if failed {
		return fmt.Errorf("one or more checks failed")
	}
	return nil
}

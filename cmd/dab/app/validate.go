package app

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/weiplanet/data-api-builder/authorization"
	"github.com/weiplanet/data-api-builder/config"
	"github.com/weiplanet/data-api-builder/metadata"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the runtime configuration",
	Long: `Validate the runtime configuration file without touching the database:
checks entity sources, permission settings and GraphQL type names, and prints
a summary of the API surface that would be exposed.`,
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	runtime, err := config.LoadRuntimeConfig(cfg.RuntimeConfigPath)
	if err != nil {
		fmt.Printf("Configuration invalid:\n%v\n", err)
		return err
	}

	store, err := metadata.NewStore(runtime)
	if err != nil {
		fmt.Printf("Configuration invalid:\n%v\n", err)
		return err
	}

	resolver := authorization.NewResolver(runtime)

	fmt.Printf("Configuration valid: %s\n", cfg.RuntimeConfigPath)
	fmt.Printf("Database type: %s\n", runtime.DataSource.DatabaseType)
	fmt.Printf("Entities: %d\n", len(store.Entities()))
	for _, entity := range store.Entities() {
		ops := 0
		for _, op := range []authorization.Operation{
			authorization.OpCreate,
			authorization.OpRead,
			authorization.OpUpdate,
			authorization.OpDelete,
			authorization.OpExecute,
		} {
			if len(resolver.RolesAuthorizedFor(entity.Name, op)) > 0 {
				ops++
			}
		}
		fmt.Printf("  %s (%s): %d authorized operations\n", entity.Name, entity.Kind, ops)
	}
	return nil
}

package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"gorm.io/driver/postgres"
	"gorm.io/gen"
	"gorm.io/gorm"
)

// tables are the ones the repositories map; schema_migrations is left out.
var tables = []string{"base_states", "player_bases", "base_events", "player_credentials"}

func main() {
	var dsn, out string
	flag.StringVar(&dsn, "dsn", os.Getenv("REEF_DB_DSN"), "postgres dsn")
	flag.StringVar(&out, "out", "internal/adapter/repo/gorm/model", "output dir for generated models")
	flag.Parse()

	if dsn == "" {
		log.Fatal("missing --dsn or REEF_DB_DSN")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}

	g := gen.NewGenerator(gen.Config{
		OutPath:      out,
		ModelPkgPath: "model",
		Mode:         gen.WithoutContext,
	})
	g.UseDB(db)
	for _, table := range tables {
		g.GenerateModel(table)
	}
	g.Execute()

	fmt.Printf("generated %d gorm models at %s\n", len(tables), out)
}

package main

import (
	"context"
	"flag"
	"log"
	"os"

	"atomovision-editorial/internal/config"
	"atomovision-editorial/internal/db"
	"atomovision-editorial/internal/importer"
	bookrepo "atomovision-editorial/internal/repository/book"
	genrerepo "atomovision-editorial/internal/repository/genre"
)

func main() {
	logger := log.New(os.Stdout, "[importer] ", log.LstdFlags|log.LUTC|log.Lshortfile)

	path := flag.String("file", "", "path to catalog export JSON")
	flag.Parse()
	if *path == "" {
		logger.Fatal("missing -file argument")
	}

	f, err := os.Open(*path)
	if err != nil {
		logger.Fatalf("open export: %v", err)
	}
	defer f.Close()

	cfg := config.FromEnv()
	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DBConnString)
	if err != nil {
		logger.Fatalf("connect db: %v", err)
	}
	defer pool.Close()

	imp := importer.NewJSONImporter(f, bookrepo.NewPostgres(pool, logger), genrerepo.NewPostgres(pool))
	count, err := imp.Run(ctx)
	if err != nil {
		logger.Fatalf("import failed after %d books: %v", count, err)
	}

	logger.Printf("imported %d books", count)
}

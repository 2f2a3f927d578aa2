package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/duynguyendang/blockbaker/internal/manager"
	"github.com/duynguyendang/blockbaker/pkg/service"
	"github.com/duynguyendang/blockbaker/pkg/tags/store"
)

func main() {
	dataDir := flag.String("data", "./data", "data directory holding one directory per project")
	backend := flag.String("backend", string(store.BackendFS), "storage backend: fs or badger")
	project := flag.String("project", "", "verify only this project")
	flag.Parse()

	tmpl := store.DefaultConfig(*dataDir)
	tmpl.Backend = store.Backend(*backend)
	tmpl.ReadOnly = true

	mgr, err := manager.NewLibraryManager(manager.Options{BaseDir: *dataDir, Storage: *tmpl})
	if err != nil {
		log.Fatal(err)
	}
	defer mgr.CloseAll()
	svc := service.NewCatalogService(mgr, nil)

	var ids []string
	if *project != "" {
		ids = []string{*project}
	} else {
		projects, err := svc.ListProjects()
		if err != nil {
			log.Fatalf("Failed to list projects: %v", err)
		}
		for _, p := range projects {
			ids = append(ids, p.ID)
		}
	}
	if len(ids) == 0 {
		fmt.Printf("No projects under %s\n", *dataDir)
		return
	}

	ctx := context.Background()
	failed := 0
	for _, id := range ids {
		violations, err := svc.Verify(ctx, id)
		if err != nil {
			fmt.Printf("  FAIL %s: %v\n", id, err)
			failed++
			continue
		}
		if len(violations) == 0 {
			fmt.Printf("  PASS %s\n", id)
			continue
		}
		fmt.Printf("  FAIL %s: %d violations\n", id, len(violations))
		for _, v := range violations {
			fmt.Printf("    %s\n", v)
		}
		failed++
	}

	fmt.Printf("\nVerified %d projects, %d failed\n", len(ids), failed)
	if failed > 0 {
		os.Exit(1)
	}
}

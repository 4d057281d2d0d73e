// Command main seeds a StashKeeper row store with demo requests.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"stashkeeper/internal/config"
	"stashkeeper/internal/models"
	"stashkeeper/internal/priority"
	"stashkeeper/internal/rowstore"
	"stashkeeper/internal/service"
)

func main() {
	numUsers := flag.Int("users", 20, "Number of requesters to create")
	numRequests := flag.Int("requests", 60, "Number of requests to submit")
	seed := flag.Int64("seed", 0, "Random seed (0 picks one)")
	flag.Parse()

	if *seed != 0 {
		gofakeit.Seed(*seed)
	}

	log.Println("🌱 Request Seeder")
	log.Println("=================")
	log.Printf("Target: %d users, %d requests\n", *numUsers, *numRequests)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	table, err := rowstore.OpenGormTable(cfg.RowStoreDriver, cfg.RowStoreDSN)
	if err != nil {
		log.Fatalf("Failed to open row store: %v", err)
	}
	store := rowstore.NewAdapter(table, rowstore.DefaultRetryPolicy())

	ctx := context.Background()
	catalog := models.DefaultCatalog()
	directory := priority.NewDirectory(priority.NewFileBlobStore(cfg.PriorityFile), cfg.DefaultPriority)

	users := make([]seedUser, 0, *numUsers)
	for i := 0; i < *numUsers; i++ {
		u := seedUser{
			id:      fmt.Sprintf("user-%06d", gofakeit.Number(100000, 999999)),
			display: gofakeit.Username(),
		}
		users = append(users, u)
		// Roughly a quarter of requesters carry an elevated level.
		if gofakeit.Bool() && gofakeit.Bool() {
			level := gofakeit.Number(priority.LevelHigh, priority.LevelAdmin)
			if err := directory.SetMany(ctx, []string{u.id}, level); err != nil {
				log.Fatalf("❌ Priority seeding failed: %v", err)
			}
		}
	}

	svc := service.NewRequestService(store, directory, catalog, nil, service.Options{})
	resources := catalog.All()

	created := 0
	for i := 0; i < *numRequests; i++ {
		u := users[gofakeit.Number(0, len(users)-1)]
		key := resources[gofakeit.Number(0, len(resources)-1)]

		in := service.SubmitInput{
			RequesterID:      u.id,
			RequesterDisplay: u.display,
			CharacterName:    gofakeit.Gamertag(),
			ResourceKey:      key,
			Quantity:         gofakeit.Number(1, 12),
		}
		if class, _ := catalog.ClassOf(key); class == models.ClassRare {
			in.EvidenceRef = fmt.Sprintf("mem://seed/%s.webp", gofakeit.UUID())
		}

		if _, err := svc.Submit(ctx, in); err != nil {
			log.Fatalf("❌ Seeding request %d failed: %v", i, err)
		}
		created++
		time.Sleep(time.Millisecond) // distinct submission timestamps
	}

	log.Printf("✅ Seeded %d requests from %d users", created, len(users))
}

type seedUser struct {
	id      string
	display string
}

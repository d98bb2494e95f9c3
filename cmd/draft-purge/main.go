// draft-purge deletes stale or corrupt local draft collections.
//
// Usage:
//
//	DRAFT_DB_PATH=/var/lib/dormops/drafts.db go run ./cmd/draft-purge
//	go run ./cmd/draft-purge -retention 24h -dry-run
//
// Intended for cron on shared kiosk hosts; the interactive client runs the
// same pass at startup.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dormstack/dormops_client/config"
	"github.com/dormstack/dormops_client/models"
	"github.com/dormstack/dormops_client/utils"
)

func main() {
	retention := flag.Duration("retention", models.DraftRetention, "draft retention window")
	dryRun := flag.Bool("dry-run", false, "list purgeable keys without deleting")
	flag.Parse()

	logger := config.GetLogger()
	ctx := context.Background()

	config.ConnectDraftStoreWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintf(os.Stderr, "draft store not available at %s\n", config.DraftDBPath())
		os.Exit(1)
	}
	utils.ErrorPanic(models.MigrateTable())

	var secondary models.DraftStore
	if config.ConnectRedisWithRetry(1) {
		secondary = &models.RedisDraftStore{Client: config.GetRedisDB(), TTL: models.DraftRetention}
	}
	cache := models.NewDraftCache(&models.GormDraftStore{DB: db}, secondary, logger)

	if *dryRun {
		keys, err := (&models.GormDraftStore{DB: db}).Keys(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "list keys: %v\n", err)
			os.Exit(1)
		}
		cutoff := time.Now().Add(-*retention)
		fmt.Printf("%d draft collections, retention cutoff %s\n", len(keys), cutoff.Format(time.RFC3339))
		for _, key := range keys {
			fmt.Println(key)
		}
		return
	}

	stats, err := cache.PurgeStale(ctx, *retention)
	if err != nil {
		fmt.Fprintf(os.Stderr, "purge failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("scanned %d, purged %d (stale %d, corrupt %d)\n", stats.Scanned, stats.Purged, stats.Stale, stats.Corrupt)
}

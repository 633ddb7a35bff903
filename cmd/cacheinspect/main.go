// Command cacheinspect prints a read-only summary of a lanreader data
// directory: cached archives, tags, downloads and the saved server.
package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/dgraph-io/badger/v4"
	_ "modernc.org/sqlite"

	"github.com/lanreader/lanreader/internal/domain"
)

const topTags = 10

func main() {
	basePath := os.Getenv("DATA_PATH")
	if basePath == "" {
		basePath = os.ExpandEnv("$HOME/.lanreader")
	}

	fmt.Println("=== Cache Inspection ===")
	fmt.Printf("Data: %s\n\n", basePath)

	if err := inspectCache(filepath.Join(basePath, "cache.db")); err != nil {
		log.Fatalf("Failed to inspect cache: %v", err)
	}
	if err := inspectSettings(filepath.Join(basePath, "settings")); err != nil {
		log.Fatalf("Failed to inspect settings: %v", err)
	}
}

func inspectCache(path string) error {
	// Opened directly so migrations and the page reset never run.
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return err
	}
	defer db.Close()

	counts := []struct{ label, table string }{
		{"Archives", "archives"},
		{"Thumbnails", "archive_thumbnails"},
		{"Cached pages", "archive_images"},
		{"Offline archives", "archive_caches"},
		{"Categories", "categories"},
		{"Download jobs", "download_jobs"},
		{"History entries", "history"},
		{"Tags", "tag_items"},
	}
	for _, c := range counts {
		var n int
		if err := db.QueryRow("SELECT COUNT(*) FROM " + c.table).Scan(&n); err != nil {
			return fmt.Errorf("count %s: %w", c.table, err)
		}
		fmt.Printf("%-17s %d\n", c.label+":", n)
	}

	var unread int
	if err := db.QueryRow("SELECT COUNT(*) FROM archives WHERE is_new = 1").Scan(&unread); err != nil {
		return fmt.Errorf("count new archives: %w", err)
	}
	fmt.Printf("%-17s %d\n\n", "New:", unread)

	rows, err := db.Query("SELECT tag, count FROM tag_items ORDER BY count DESC, tag LIMIT ?", topTags)
	if err != nil {
		return fmt.Errorf("query tags: %w", err)
	}
	defer rows.Close()

	fmt.Println("Top tags:")
	for rows.Next() {
		var tag string
		var count int
		if err := rows.Scan(&tag, &count); err != nil {
			return err
		}
		fmt.Printf("  %5d  %s\n", count, tag)
	}
	fmt.Println()
	return rows.Err()
}

func inspectSettings(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		fmt.Println("Server: no settings saved yet")
		return nil
	}

	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return err
	}
	defer db.Close()

	var creds domain.Credentials
	err = db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte("settings:credentials"))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &creds)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		fmt.Println("Server: not saved (configured defaults apply)")
		return nil
	}
	if err != nil {
		return err
	}

	key := "not set"
	if creds.APIKey != "" {
		key = "set (redacted)"
	}
	fmt.Printf("Server:  %s\n", creds.ServerURL)
	fmt.Printf("API key: %s\n", key)
	return nil
}

package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"strings"

	"claim-oracle/internal/config"

	_ "github.com/lib/pq"
)

// minimum VARCHAR sizes the issuance audit log needs
var expectedColumns = map[string]int64{
	"address":   42,
	"token":     42,
	"contract":  42,
	"amount":    78,
	"nonce":     78,
	"hash":      66,
	"signature": 132,
}

func main() {
	fmt.Println("🔍 Verifying audit database connection and column sizes...")
	fmt.Println(strings.Repeat("=", 60))

	configPath := ""
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Database.DSN == "" {
		log.Fatalf("Database DSN not configured: set DATABASE_DSN")
	}

	sqlDB, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer sqlDB.Close()

	var dbName string
	if err := sqlDB.QueryRow("SELECT current_database()").Scan(&dbName); err != nil {
		log.Fatalf("Failed to get database name: %v", err)
	}
	fmt.Printf("📋 Connected to database: %s\n", dbName)

	rows, err := sqlDB.Query(`
		SELECT column_name, character_maximum_length
		FROM information_schema.columns
		WHERE table_schema = 'public'
		AND table_name = 'claim_issuances'
	`)
	if err != nil {
		log.Fatalf("Failed to query columns: %v", err)
	}
	defer rows.Close()

	found := make(map[string]sql.NullInt64)
	for rows.Next() {
		var name string
		var size sql.NullInt64
		if err := rows.Scan(&name, &size); err != nil {
			log.Fatalf("Error scanning row: %v", err)
		}
		found[name] = size
	}
	if err := rows.Err(); err != nil {
		log.Fatalf("Failed to read columns: %v", err)
	}

	if len(found) == 0 {
		fmt.Println("❌ claim_issuances table does not exist! Start the server once to migrate it.")
		os.Exit(1)
	}

	ok := true
	for column, want := range expectedColumns {
		size, exists := found[column]
		switch {
		case !exists:
			fmt.Printf("❌ claim_issuances.%s is missing\n", column)
			ok = false
		case size.Valid && size.Int64 < want:
			fmt.Printf("❌ claim_issuances.%s is VARCHAR(%d), need VARCHAR(%d)\n", column, size.Int64, want)
			ok = false
		default:
			fmt.Printf("✅ claim_issuances.%s\n", column)
		}
	}

	var count int64
	if err := sqlDB.QueryRow("SELECT COUNT(*) FROM claim_issuances").Scan(&count); err != nil {
		log.Fatalf("Failed to count issuances: %v", err)
	}
	fmt.Printf("📋 %d issuance records\n", count)

	if !ok {
		os.Exit(1)
	}
	fmt.Println("✅ Audit database looks good")
}

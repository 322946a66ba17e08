package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"claim-oracle/internal/handlers"
)

func main() {
	username := flag.String("username", "admin", "admin username embedded in the token")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	secret := os.Getenv("ADMIN_JWT_SECRET")
	if secret == "" {
		fmt.Println("❌ ADMIN_JWT_SECRET is not set")
		os.Exit(1)
	}

	now := time.Now()
	tokenString, err := handlers.GenerateAdminJWTToken([]byte(secret), *username, *ttl, now)
	if err != nil {
		fmt.Printf("Error generating token: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("============================================================")
	fmt.Println("Admin JWT Token Generated")
	fmt.Println("============================================================")
	fmt.Println()
	fmt.Println("Token:")
	fmt.Println(tokenString)
	fmt.Println()
	fmt.Printf("  Username: %s\n", *username)
	fmt.Printf("  Expires: %s\n", now.Add(*ttl).Format(time.RFC3339))
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Printf("curl -H 'Authorization: Bearer %s' http://localhost:8080/admin/status\n", tokenString)
}

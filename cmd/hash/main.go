// Package main is a development utility for seeding a local database. "hash <password>"
// prints a bcrypt hash suitable for users.password; "secret" prints a fresh value for
// PINCO_AUTH_JWT_SECRET.
package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"os"

	"github.com/pinco/pinco-backend/internal/auth"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatalf("usage: %s hash <password> | secret", os.Args[0])
	}

	switch os.Args[1] {
	case "hash":
		if len(os.Args) < 3 {
			log.Fatalf("usage: %s hash <password>", os.Args[0])
		}
		hash, err := auth.HashPassword(os.Args[2])
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(hash)
	case "secret":
		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			log.Fatal(err)
		}
		fmt.Println(hex.EncodeToString(b))
	default:
		log.Fatalf("unknown command: %s", os.Args[1])
	}
}

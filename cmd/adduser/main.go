// cmd/adduser/main.go
// Creates or updates a user in the database.
//
// Usage:
//
//	go run ./cmd/adduser -lineid U1234 -password testing -name "管理者" -admin
package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"golang.org/x/crypto/bcrypt"

	"github.com/takigawalab/indexapi/config"
	bundb "github.com/takigawalab/indexapi/db"
	"github.com/takigawalab/indexapi/models"
)

func main() {
	lineID := flag.String("lineid", "", "LINE user id (required)")
	password := flag.String("password", "", "plain-text password (required)")
	name := flag.String("name", "", "display name")
	admin := flag.Bool("admin", false, "grant admin rights")
	points := flag.Int("points", 0, "initial point balance")
	flag.Parse()

	if *lineID == "" || *password == "" {
		log.Fatal("both -lineid and -password are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatal("bcrypt:", err)
	}

	cfg := config.Load()
	db := bundb.Setup(cfg)
	defer db.Close()

	user := &models.User{
		LineID:   *lineID,
		Name:     *name,
		Password: string(hash),
		Points:   *points,
		IsAdmin:  *admin,
	}

	_, err = db.NewInsert().Model(user).
		On("CONFLICT (line_id) DO UPDATE SET password = EXCLUDED.password, is_admin = EXCLUDED.is_admin").
		Exec(context.Background())
	if err != nil {
		log.Fatal("insert user:", err)
	}

	fmt.Printf("user %q saved\n", *lineID)
}

// Command seed-directory provisions user profiles into the Redis-backed
// directory. It reads a JSON object mapping user IDs to profiles, or seeds
// the built-in demo users with -demo.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/dvloznov/exchange-settler/internal/config"
	"github.com/dvloznov/exchange-settler/internal/directory"
	"github.com/dvloznov/exchange-settler/internal/logger"
)

func main() {
	var (
		filePath string
		demo     bool
	)

	flag.StringVar(&filePath, "file", "", "Path to a JSON object of user_id -> profile")
	flag.BoolVar(&demo, "demo", false, "Seed the built-in demo users instead of a file")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.MustLoad()

	log := logger.New(cfg.LogLevel)

	if filePath == "" && !demo {
		log.Fatal().Msg("Usage: seed-directory -file /path/to/users.json (or -demo)")
	}

	users := directory.DefaultUsers()
	if filePath != "" {
		content, err := os.ReadFile(filePath)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to read users file")
		}
		users = nil
		if err := json.Unmarshal(content, &users); err != nil {
			log.Fatal().Err(err).Msg("Failed to decode users file")
		}
		if len(users) == 0 {
			log.Fatal().Msg("Users file is empty")
		}
	}

	ctx := context.Background()
	ctx = logger.WithContext(ctx, log)

	dir := directory.NewRedis(cfg.Directory.Redis)
	defer dir.Close()

	log.Info().
		Str("addr", cfg.Directory.Redis.Addr).
		Int("users", len(users)).
		Msg("Seeding user directory")

	for userID, profile := range users {
		if err := dir.Put(ctx, userID, profile); err != nil {
			log.Fatal().Err(err).Str("user_id", userID).Msg("Failed to store profile")
		}
		log.Info().Str("user_id", userID).Msg("Stored profile")
	}

	fmt.Printf("Seeded %d users into the directory at %s\n", len(users), cfg.Directory.Redis.Addr)
}

package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr        string
	JWTSecret   string
	DatabaseURL string

	TickHz           int
	CountdownSeconds int
	GraceSeconds     int
	AllowSpectators  bool
}

// Load reads .env when present and falls back to real environment variables.
// Every knob has a default; only the JWT secret genuinely has to be set for
// anything but local play.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Addr:             getEnv("ADDR", ":8080"),
		JWTSecret:        getEnv("JWT_SECRET", "dev-secret-change-me"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		TickHz:           getEnvInt("TICK_HZ", 60),
		CountdownSeconds: getEnvInt("COUNTDOWN_SECONDS", 3),
		GraceSeconds:     getEnvInt("WALKOVER_GRACE_SECONDS", 30),
		AllowSpectators:  getEnvBool("ALLOW_SPECTATORS", false),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

package shared

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ExpandTemplate replaces {date}, {datetime}, {timestamp}, and {playlist_id} placeholders in value.
//
// {playlist_id} is left as-is when playlistID is empty.
func ExpandTemplate(value, playlistID string, now time.Time) string {
	if value == "" {
		return value
	}

	pairs := []string{
		"{date}", now.Format("20060102"),
		"{datetime}", now.Format("20060102_150405"),
		"{timestamp}", strconv.FormatInt(now.Unix(), 10),
	}
	if playlistID != "" {
		pairs = append(pairs, "{playlist_id}", playlistID)
	}

	return strings.NewReplacer(pairs...).Replace(value)
}

// EnvSearchPaths lists the implicit .env locations in lookup order.
func EnvSearchPaths() []string {
	paths := []string{".env"}
	if dir, err := UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, ".env"))
	}
	return paths
}

// LoadEnvFile loads variables from explicit, or the first existing default location.
//
// Variables already present in the environment are not overridden.
// Returns the loaded path, or "" when no file was found.
func LoadEnvFile(explicit string) (string, error) {
	candidates := EnvSearchPaths()
	if explicit != "" {
		candidates = []string{explicit}
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err != nil {
			if explicit != "" {
				return "", err
			}
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return "", err
		}
		return path, nil
	}
	return "", nil
}

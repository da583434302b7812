package config

import "os"

// Config is the process configuration, read from the environment after
// godotenv has loaded the optional .env file.
type Config struct {
	DataFile   string // backing CSV file of the record store
	HTTPAddr   string
	UploadDir  string // where uploaded CSVs are staged before import
	CORSOrigin string
	LogLevel   string
}

func Load() Config {
	return Config{
		DataFile:   getenv("DATA_FILE", "students.csv"),
		HTTPAddr:   getenv("HTTP_ADDR", ":8080"),
		UploadDir:  getenv("UPLOAD_DIR", "uploads"),
		CORSOrigin: getenv("CORS_ORIGIN", "http://localhost:3000"),
		LogLevel:   getenv("LOG_LEVEL", "info"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

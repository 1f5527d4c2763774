package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/ImageMarkup/isic/doi"
)

// settings is the environment configuration shared by all commands.
type settings struct {
	BaseURL        string
	Token          string
	TokenSecret    string
	TokenSecretKey string
	SecretRetries  int
	SecretsURL     string
	CSRFPage       string
	TokenHeader    string

	Backend        string
	Bucket         string
	Prefix         string
	Region         string
	S3Endpoint     string
	S3PathStyle    bool
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioSecure    bool

	Timeout  time.Duration
	LogLevel slog.Level
}

// loadEnvFile seeds the environment from a .env file. Variables already set win.
// A missing default file is not an error.
func loadEnvFile() error {
	path := os.Getenv("DOIFLOW_ENV_FILE")
	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func loadSettings(getenv func(string) string) (settings, error) {
	s := settings{
		BaseURL:        getenv("DOIFLOW_BASE_URL"),
		Token:          getenv("DOIFLOW_TOKEN"),
		TokenSecret:    getenv("DOIFLOW_TOKEN_SECRET"),
		TokenSecretKey: getenv("DOIFLOW_TOKEN_SECRET_KEY"),
		SecretsURL:     getenv("DOIFLOW_SECRETS_ENDPOINT"),
		CSRFPage:       getenv("DOIFLOW_CSRF_PAGE"),
		TokenHeader:    getenv("DOIFLOW_TOKEN_HEADER"),
		Backend:        getenv("DOIFLOW_UPLOAD_BACKEND"),
		Bucket:         getenv("DOIFLOW_BUCKET"),
		Prefix:         getenv("DOIFLOW_PREFIX"),
		Region:         getenv("DOIFLOW_REGION"),
		S3Endpoint:     getenv("DOIFLOW_S3_ENDPOINT"),
		MinioEndpoint:  getenv("DOIFLOW_MINIO_ENDPOINT"),
		MinioAccessKey: getenv("DOIFLOW_MINIO_ACCESS_KEY"),
		MinioSecretKey: getenv("DOIFLOW_MINIO_SECRET_KEY"),
		LogLevel:       slog.LevelWarn,
	}
	if s.BaseURL == "" {
		s.BaseURL = doi.DefaultBaseURL
	}
	if s.Backend == "" {
		s.Backend = backendFieldFile
	}

	var err error
	if s.S3PathStyle, err = parseBool(getenv, "DOIFLOW_S3_PATH_STYLE"); err != nil {
		return settings{}, err
	}
	if s.MinioSecure, err = parseBool(getenv, "DOIFLOW_MINIO_SECURE"); err != nil {
		return settings{}, err
	}
	if v := getenv("DOIFLOW_TIMEOUT"); v != "" {
		if s.Timeout, err = time.ParseDuration(v); err != nil {
			return settings{}, fmt.Errorf("DOIFLOW_TIMEOUT: %w", err)
		}
	}
	if v := getenv("DOIFLOW_TOKEN_SECRET_RETRIES"); v != "" {
		if s.SecretRetries, err = strconv.Atoi(v); err != nil || s.SecretRetries < 1 {
			return settings{}, fmt.Errorf("DOIFLOW_TOKEN_SECRET_RETRIES: want a positive integer, got %q", v)
		}
	}
	if v := getenv("DOIFLOW_LOG_LEVEL"); v != "" {
		if err := s.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return settings{}, fmt.Errorf("DOIFLOW_LOG_LEVEL: %w", err)
		}
	}

	switch s.Backend {
	case backendFieldFile, backendS3, backendMinio:
	default:
		return settings{}, fmt.Errorf("DOIFLOW_UPLOAD_BACKEND: unknown backend %q", s.Backend)
	}
	return s, nil
}

func parseBool(getenv func(string) string, key string) (bool, error) {
	v := getenv(key)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

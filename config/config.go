package config

import (
	"errors"
	"os"
	"strconv"

	_ "github.com/joho/godotenv/autoload"
)

type AWSConfig struct {
	Region    string
	AccountID string
}

func (c AWSConfig) Validate() error {
	if c.Region == "" {
		return errors.New("AWS_REGION is required")
	}
	if os.Getenv("AWS_ACCESS_KEY_ID") == "" || os.Getenv("AWS_SECRET_ACCESS_KEY") == "" {
		return errors.New("aws security credentials were not found")
	}
	return nil
}

type DynamoDBConfig struct {
	SessionsTableName string
	FilesTableName    string
}

type StorageConfig struct {
	// Backend selects where merged files land: "s3", "local" or "memory".
	// "memory" also swaps the session and file stores for in-process ones.
	Backend string

	ChunkUploadDir string
	UploadDir      string
	S3Bucket       string
}

type RedisConfig struct {
	Host    string
	Enabled bool
}

type ServiceConfig struct {
	HTTPAddr                      string
	UploadsNotificationsQueueName string
}

type Config struct {
	Env         string
	Tracing     bool
	TracingAddr string

	AWSConfig      *AWSConfig
	DynamoDBConfig *DynamoDBConfig
	StorageConfig  *StorageConfig
	RedisConfig    *RedisConfig
	ServiceConfig  *ServiceConfig
}

func LoadConfig() Config {
	return Config{
		Env:         getEnv("ENV", "dev"),
		Tracing:     getBool("TRACING_ENABLED", false),
		TracingAddr: getEnv("TRACING_ADDR", "localhost:4318"),

		AWSConfig: &AWSConfig{
			Region:    getEnv("AWS_REGION", "us-east-1"),
			AccountID: getEnv("AWS_ACCOUNT_ID", ""),
		},
		DynamoDBConfig: &DynamoDBConfig{
			SessionsTableName: getEnv("DYNAMODB_SESSIONS_TABLE", "chunk_upload_sessions"),
			FilesTableName:    getEnv("DYNAMODB_FILES_TABLE", "files"),
		},
		StorageConfig: &StorageConfig{
			Backend:        getEnv("STORAGE_BACKEND", "local"),
			ChunkUploadDir: getEnv("CHUNK_UPLOAD_DIR", "/tmp/uploads/chunks"),
			UploadDir:      getEnv("UPLOAD_DIR", "/tmp/uploads/files"),
			S3Bucket:       getEnv("S3_BUCKET", ""),
		},
		RedisConfig: &RedisConfig{
			Host:    getEnv("REDIS_HOST", "localhost:6379"),
			Enabled: getBool("REDIS_ENABLED", false),
		},
		ServiceConfig: &ServiceConfig{
			HTTPAddr:                      getEnv("UPLOADS_HTTP_ADDR", ":8080"),
			UploadsNotificationsQueueName: getEnv("UPLOADS_NOTIFICATIONS_QUEUE", "uploads-notifications"),
		},
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

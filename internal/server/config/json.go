package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/avbaranovs/schoolcast/internal/flagx"
)

// JsonConfig is the intermediate DTO used only for reading JSON configuration
// files. Durations are given as integer seconds; after unmarshalling the
// values are copied into the runtime Config. Pointer fields distinguish
// "absent" from "zero" so a sparse file only overrides what it names.
type JsonConfig struct {
	DatabaseDSN          *string             `json:"database_dsn"`
	ChunkSizeBytes       *int                `json:"chunk_size_bytes"`
	MaxUploadBytes       *int64              `json:"max_upload_bytes"`
	ChunkBackend         *string             `json:"chunk_backend"`
	SweepIntervalSeconds *int                `json:"sweep_interval_seconds"`
	SweepGraceSeconds    *int                `json:"sweep_grace_seconds"`
	SchoolNames          []string            `json:"school_names"`
	LicenseLimits        map[string]int      `json:"license_limits"`
	ValidLicenseKeys     map[string][]string `json:"valid_license_keys"`
	S3RootUser           *string             `json:"s3_root_user"`
	S3RootPassword       *string             `json:"s3_root_password"`
	S3Bucket             *string             `json:"s3_bucket"`
	S3Region             *string             `json:"s3_region"`
	S3BaseEndpoint       *string             `json:"s3_base_endpoint"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance. The file path comes from the -c or -config command-line
// flags; when neither is set, no JSON file is loaded. A missing or malformed
// file panics: the server must not start on a half-read configuration.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	if c.DatabaseDSN != nil {
		config.DatabaseDSN = *c.DatabaseDSN
	}
	if c.ChunkSizeBytes != nil {
		config.ChunkSizeBytes = *c.ChunkSizeBytes
	}
	if c.MaxUploadBytes != nil {
		config.MaxUploadBytes = *c.MaxUploadBytes
	}
	if c.ChunkBackend != nil {
		config.ChunkBackend = *c.ChunkBackend
	}
	if c.SweepIntervalSeconds != nil {
		config.SweepInterval = time.Duration(*c.SweepIntervalSeconds) * time.Second
	}
	if c.SweepGraceSeconds != nil {
		config.SweepGrace = time.Duration(*c.SweepGraceSeconds) * time.Second
	}
	if c.SchoolNames != nil {
		config.SchoolNames = c.SchoolNames
	}
	if c.LicenseLimits != nil {
		config.LicenseLimits = c.LicenseLimits
	}
	if c.ValidLicenseKeys != nil {
		config.ValidLicenseKeys = c.ValidLicenseKeys
	}
	if c.S3RootUser != nil {
		config.S3RootUser = *c.S3RootUser
	}
	if c.S3RootPassword != nil {
		config.S3RootPassword = *c.S3RootPassword
	}
	if c.S3Bucket != nil {
		config.S3Bucket = *c.S3Bucket
	}
	if c.S3Region != nil {
		config.S3Region = *c.S3Region
	}
	if c.S3BaseEndpoint != nil {
		config.S3BaseEndpoint = *c.S3BaseEndpoint
	}
}

package config

import (
	"flag"
	"os"
	"time"

	"github.com/avbaranovs/schoolcast/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-d string   PostgreSQL DSN
//	-z int      chunk size, bytes
//	-m int      maximum upload size, bytes (0 disables the cap)
//	-x string   chunk backend: "postgres" or "s3"
//	-w int      sweep interval, seconds
//	-r int      sweep grace period, seconds
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-d", "-z", "-m", "-x", "-w", "-r", "-u", "-p", "-b", "-g", "-e"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.IntVar(&config.ChunkSizeBytes, "z", config.ChunkSizeBytes, "chunk size in bytes")
	fs.Int64Var(&config.MaxUploadBytes, "m", config.MaxUploadBytes, "maximum upload size in bytes")
	fs.StringVar(&config.ChunkBackend, "x", config.ChunkBackend, "chunk backend (postgres or s3)")

	sweepInterval := fs.Int("w", int(config.SweepInterval.Seconds()), "sweep interval (in seconds)")
	sweepGrace := fs.Int("r", int(config.SweepGrace.Seconds()), "sweep grace period (in seconds)")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.SweepInterval = time.Duration(*sweepInterval) * time.Second
	config.SweepGrace = time.Duration(*sweepGrace) * time.Second
}

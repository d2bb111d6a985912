// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a Config struct with all settings:

	cfg, err := cliparse.ParseFlags(os.Args[1:])

# Config Fields

  - Port: Server listen port (default: 3318)
  - DatabaseURL: Database connection string (required)
  - DatabaseType: sqlite or postgres (default: sqlite)
  - JWTSecret: Access token signing secret (required)
  - PollDuration: Poll lifetime from creation (default: 7200s)
  - SweepInterval: How often expired polls are deleted (default: 5m)
  - ClientOrigins: Allowed browser origins (default: *)
  - LogLevel: slog level (default: info)

# CLI Flags

	-p               Server port
	-d               Database URL
	-t               Database type
	--jwt-secret     Token signing secret
	--poll-duration  Poll lifetime in seconds
	--sweep-interval Sweep interval (Go duration)
	--origins        Comma separated client origins
	--log-level      debug, info, warn, error
	--env-file       Env file to load (default: .env)

# Environment Variables

Flags fall back to environment variables:

	PORT           → -p
	DATABASE_URL   → -d
	DATABASE_TYPE  → -t
	JWT_SECRET     → --jwt-secret
	POLL_DURATION  → --poll-duration
	SWEEP_INTERVAL → --sweep-interval
	CLIENT_ORIGINS → --origins
	LOG_LEVEL      → --log-level

CLI flags take precedence over environment variables. The env file is loaded
with godotenv before the fallback runs and never overrides a variable that is
already set. A missing env file is not an error.

# Validation

ParseFlags returns an error if required values are missing:

  - DATABASE_URL must be provided
  - JWT_SECRET must be provided
*/
package cliparse

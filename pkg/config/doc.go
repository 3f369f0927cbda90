// Package config loads crmguard configuration from CRM_* environment variables.
//
// Recognized variables:
//
//	CRM_DATABASE_URL       PostgreSQL connection string (required)
//	CRM_DB_MAX_CONNS       maximum open connections (default 25)
//	CRM_DB_MIN_CONNS       idle connections kept (default 5)
//	CRM_DB_TIMEOUT         connect/ping timeout (default 5s)
//	CRM_DB_MAX_LIFETIME    connection max lifetime (default 30m)
//	CRM_DB_MAX_IDLE_TIME   connection max idle time (default 5m)
//	CRM_LOG_LEVEL          debug, info, warn or error (default info)
//	CRM_METRICS_ENABLED    register Prometheus collectors (default true)
//	CRM_BCRYPT_COST        password hashing cost (default 10)
//	CRM_SEED_FILE          default catalogue file for the seed command
package config

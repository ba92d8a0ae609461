package main

import (
	"io"
	"time"

	"github.com/guillermoBallester/querygate/internal/config"
	"github.com/spf13/pflag"
)

func bindServeFlags(fs *pflag.FlagSet) {
	fs.String("database-url", "", "PostgreSQL connection URL (env DATABASE_URL)")
	fs.String("log-level", "", "debug, info, warn or error (env LOG_LEVEL)")
	fs.Int("max-rows", 0, "maximum rows returned per query (env MAX_ROWS)")
	fs.Duration("query-timeout", 0, "statement timeout (env QUERY_TIMEOUT)")
	fs.String("policy-file", "", "YAML file extending the admission rules (env POLICY_FILE)")
	fs.Int("max-query-bytes", 0, "refuse SQL longer than this many bytes (env MAX_QUERY_BYTES)")
	fs.Bool("parse-check", false, "cross-check admitted SQL with the PostgreSQL parser (env PARSE_CHECK)")
	fs.String("transport", "", "stdio or http (env TRANSPORT)")
	fs.String("http-addr", "", "listen address for the http transport (env HTTP_ADDR)")
	fs.String("http-bearer-token", "", "bearer token required by the http transport (env HTTP_BEARER_TOKEN)")
	fs.Int32("pool-max-conns", 0, "maximum pool connections (env POOL_MAX_CONNS)")
	fs.Int32("pool-min-conns", 0, "minimum pool connections (env POOL_MIN_CONNS)")
	fs.Duration("pool-max-conn-lifetime", 0, "maximum connection lifetime (env POOL_MAX_CONN_LIFETIME)")
	fs.Bool("otel", false, "export traces and metrics over OTLP gRPC")
	fs.Bool("dry-run", false, "run without a database; only check_query is served")
	fs.Bool("explain-only", false, "plan every admitted query with EXPLAIN instead of running it")
	fs.String("audit-log", "", "append an NDJSON audit record per query to this file")
	fs.String("audit-db", "", "store audit records in this SQLite database")
}

// overridesFromFlags turns explicitly set flags into config overrides. Flags
// left at their default do not override the environment.
func overridesFromFlags(fs *pflag.FlagSet) (config.Overrides, error) {
	var o config.Overrides
	var err error

	str := func(name string) *string {
		if err != nil || !fs.Changed(name) {
			return nil
		}
		var v string
		v, err = fs.GetString(name)
		return &v
	}
	integer := func(name string) *int {
		if err != nil || !fs.Changed(name) {
			return nil
		}
		var v int
		v, err = fs.GetInt(name)
		return &v
	}
	int32Val := func(name string) *int32 {
		if err != nil || !fs.Changed(name) {
			return nil
		}
		var v int32
		v, err = fs.GetInt32(name)
		return &v
	}
	duration := func(name string) *time.Duration {
		if err != nil || !fs.Changed(name) {
			return nil
		}
		var v time.Duration
		v, err = fs.GetDuration(name)
		return &v
	}
	boolean := func(name string) bool {
		if err != nil {
			return false
		}
		var v bool
		v, err = fs.GetBool(name)
		return v
	}
	plain := func(name string) string {
		if err != nil {
			return ""
		}
		var v string
		v, err = fs.GetString(name)
		return v
	}

	o.DatabaseURL = str("database-url")
	o.LogLevel = str("log-level")
	o.MaxRows = integer("max-rows")
	o.QueryTimeout = duration("query-timeout")
	o.PolicyFile = str("policy-file")
	o.MaxQueryBytes = integer("max-query-bytes")
	o.Transport = str("transport")
	o.HTTPAddr = str("http-addr")
	o.HTTPBearerToken = str("http-bearer-token")
	o.PoolMaxConns = int32Val("pool-max-conns")
	o.PoolMinConns = int32Val("pool-min-conns")
	o.PoolMaxConnLifetime = duration("pool-max-conn-lifetime")
	o.ParseCheck = boolean("parse-check")
	o.OTelEnabled = boolean("otel")
	o.DryRun = boolean("dry-run")
	o.ExplainOnly = boolean("explain-only")
	o.AuditLog = plain("audit-log")
	o.AuditDB = plain("audit-db")

	return o, err
}

// parseFlags parses serve flags from args.
func parseFlags(args []string) (config.Overrides, error) {
	fs := pflag.NewFlagSet("querygate", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	bindServeFlags(fs)
	if err := fs.Parse(args); err != nil {
		return config.Overrides{}, err
	}
	return overridesFromFlags(fs)
}

package repository

import "fmt"

// Schema returns the idempotent DDL for the ticks table and the event journal.
func Schema(database string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.ticks (
			ts DateTime64(3, 'UTC'),
			symbol LowCardinality(String),
			price Float64,
			volume Float64,
			source LowCardinality(String),
			event_id String
		) ENGINE = ReplacingMergeTree
		PARTITION BY toYYYYMM(ts)
		ORDER BY (symbol, ts, event_id)`, database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.trading_events (
			id String,
			type LowCardinality(String),
			symbol String,
			payload String,
			ts DateTime64(3, 'UTC')
		) ENGINE = MergeTree
		PARTITION BY toYYYYMM(ts)
		ORDER BY (type, ts)`, database),
	}
}

package rulestore

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRuleStore queries a pgvector-indexed compliance_rules table. One
// table holds all domains; the domain_tag column scopes each corpus.
type PostgresRuleStore struct {
	Pool *pgxpool.Pool
}

func NewPostgresRuleStore(ctx context.Context, url string) (*PostgresRuleStore, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 10
	cfg.HealthCheckPeriod = 30 * time.Second
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresRuleStore{Pool: pool}, nil
}

func (s *PostgresRuleStore) Close() { s.Pool.Close() }

func (s *PostgresRuleStore) Search(ctx context.Context, domain string, vec []float32, k int) ([]RuleMatch, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT rule_text, severity, 1 - (embedding <=> $2::vector) AS similarity
		FROM compliance_rules
		WHERE domain_tag = $1
		ORDER BY embedding <=> $2::vector
		LIMIT $3
	`, domain, vectorLiteral(vec), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RuleMatch
	for rows.Next() {
		var m RuleMatch
		if err := rows.Scan(&m.RuleText, &m.Severity, &m.Similarity); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// pgvector accepts its input as a bracketed text literal
func vectorLiteral(vec []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range vec {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

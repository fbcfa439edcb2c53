package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fastygo/taskboard/internal/config"
)

func TestDSN(t *testing.T) {
	assert.Equal(t, "postgres://override", DSN(config.DatabaseConfig{URL: "postgres://override", Host: "ignored"}))

	dsn := DSN(config.DatabaseConfig{
		Host:     "db",
		Port:     "5432",
		Name:     "taskboard",
		User:     "board",
		Password: "p@ss/word",
	})
	assert.Equal(t, "postgres://board:p%40ss%2Fword@db:5432/taskboard?sslmode=disable", dsn)
}

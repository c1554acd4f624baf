package postgres

import (
	"os"
	"testing"

	"github.com/okian/tally/internal/adapters/repository"
	"github.com/okian/tally/internal/adapters/repository/storetest"
	"github.com/stretchr/testify/require"
)

const dsnEnv = "TALLY_TEST_POSTGRES_DSN"

func TestOpenRequiresDSN(t *testing.T) {
	_, err := Open("")
	require.Error(t, err)
}

func TestStoreConformance(t *testing.T) {
	dsn := os.Getenv(dsnEnv)
	if dsn == "" {
		t.Skipf("%s not set", dsnEnv)
	}
	storetest.Run(t, func(t *testing.T) repository.Store {
		store, err := Open(dsn)
		require.NoError(t, err)
		return store
	})
}

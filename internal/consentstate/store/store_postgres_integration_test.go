//go:build integration

package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"

	"consentstate/pkg/platform/sentinel"
	"consentstate/pkg/testutil"
	"consentstate/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateAll(context.Background()))
}

func (s *PostgresStoreSuite) TestContract() {
	runStoreContract(s.T(), s.store)
}

// TestConcurrentUpserts verifies that concurrent saves to one key leave
// exactly one row holding one of the written values.
func (s *PostgresStoreSuite) TestConcurrentUpserts() {
	ctx := context.Background()
	key := "visitor:" + testutil.TestVisitors.Visitor1 + ":cookie-consent"

	result := testutil.RunConcurrent(20, func(idx int) error {
		return s.store.Set(ctx, key, fmt.Sprintf(`{"hash":"v%d"}`, idx))
	})
	s.Equal(int32(20), result.Successes)

	var rows int
	s.Require().NoError(s.postgres.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM consent_state WHERE storage_key = $1`, key).Scan(&rows))
	s.Equal(1, rows)
}

func (s *PostgresStoreSuite) TestTransactionRollbackDiscardsWrite() {
	ctx := context.Background()
	tx, err := s.postgres.DB.BeginTx(ctx, nil)
	s.Require().NoError(err)

	s.Require().NoError(NewPostgresTx(tx).Set(ctx, "rolled-back", `{"hash":"v2"}`))
	s.Require().NoError(tx.Rollback())

	_, err = s.store.Get(ctx, "rolled-back")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

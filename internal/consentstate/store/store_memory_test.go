package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"consentstate/pkg/testutil"
)

func TestInMemoryStoreContract(t *testing.T) {
	runStoreContract(t, NewInMemory())
}

func TestInMemoryStoreConcurrentWrites(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	result := testutil.RunConcurrent(50, func(idx int) error {
		key := fmt.Sprintf("visitor:%d:cookie-consent", idx%10)
		if err := s.Set(ctx, key, testutil.NewRecord().WithHash("v2").JSON()); err != nil {
			return err
		}
		_, err := s.Get(ctx, key)
		return err
	})

	assert.Equal(t, int32(50), result.Successes)
	assert.Equal(t, 10, s.Len())
}

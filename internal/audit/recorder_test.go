package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/fentz26/dealflow/internal/models"
	"github.com/fentz26/dealflow/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingWriter struct{}

func (failingWriter) WriteDecision(context.Context, *models.DecisionRecord) error {
	return models.ErrStore
}

func TestHashInputsIsStable(t *testing.T) {
	a := HashInputs(map[string]string{"deal_id": "d1", "deal_type": "venta"})
	b := HashInputs(map[string]string{"deal_type": "venta", "deal_id": "d1"})
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, HashInputs(map[string]string{"deal_id": "d2"}))
	assert.Equal(t, "hash_error", HashInputs(func() {}))
}

func TestRecord(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	r := NewRecorder(mem)

	d := r.Record(ctx, Entry{Action: "checklist.instantiate", Inputs: map[string]string{"deal_id": "d1"}, DealID: "d1"})
	require.NotNil(t, d)
	assert.Equal(t, OutcomeSuccess, d.Outcome)
	assert.NotEmpty(t, d.ID)

	d = r.Record(ctx, Entry{Action: "task.transition", Err: errors.New("boom"), DealID: "d1", TaskID: "t1"})
	require.NotNil(t, d)
	assert.Equal(t, OutcomeError, d.Outcome)
	assert.Equal(t, "boom", d.Details)

	got, err := mem.ListDecisions(ctx, "d1", 10)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestRecordSwallowsWriteErrors(t *testing.T) {
	r := NewRecorder(failingWriter{})
	assert.Nil(t, r.Record(context.Background(), Entry{Action: "task.delete"}))
}

package dispatch

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/umarmk/mcp-server/internal/errs"
	"github.com/umarmk/mcp-server/internal/query"
)

func TestValidate_NamesJSONFields(t *testing.T) {
	err := SelectRequest{
		Filters: []query.Filter{{Column: "id"}},
	}.Validate()

	assert.Equal(t, errs.ErrKindInvalidArgument, errs.KindOf(err))
	msg := errs.MessageOf(err)
	assert.Contains(t, msg, "table is required")
	assert.Contains(t, msg, "filters[0].operator is required")
}

func TestRequestKinds(t *testing.T) {
	reqs := map[OperationKind]Request{
		OpPing:            PingRequest{},
		OpServerInfo:      ServerInfoRequest{},
		OpListTables:      ListTablesRequest{},
		OpDescribeTable:   DescribeTableRequest{},
		OpTableStatistics: TableStatisticsRequest{},
		OpInsert:          InsertRequest{},
		OpSelect:          SelectRequest{},
		OpUpdate:          UpdateRequest{},
		OpDelete:          DeleteRequest{},
		OpCustomQuery:     CustomQueryRequest{},
	}
	for kind, req := range reqs {
		assert.Equal(t, kind, req.Kind())
	}
}

func TestWrites(t *testing.T) {
	assert.True(t, writes(InsertRequest{}))
	assert.True(t, writes(UpdateRequest{}))
	assert.True(t, writes(DeleteRequest{}))
	assert.True(t, writes(CustomQueryRequest{DeclaredKind: "write"}))
	assert.True(t, writes(CustomQueryRequest{DeclaredKind: "delete"}))
	assert.False(t, writes(CustomQueryRequest{DeclaredKind: "read"}))
	assert.False(t, writes(SelectRequest{}))
	assert.False(t, writes(PingRequest{}))
}

func TestNormalizeArg(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want any
	}{
		{"whole float", 42.0, int64(42)},
		{"negative whole", -3.0, int64(-3)},
		{"fraction kept", 9.5, 9.5},
		{"beyond exact range kept", math.Pow(2, 60), math.Pow(2, 60)},
		{"string untouched", "42", "42"},
		{"nil untouched", nil, nil},
		{"bool untouched", true, true},
		{"list", []any{1.0, 2.5, "x"}, []any{int64(1), 2.5, "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeArg(tt.in))
		})
	}
}

func TestNormalizeFiltersDoesNotMutateInput(t *testing.T) {
	in := []query.Filter{{Column: "id", Operator: "=", Value: 1.0}}
	out := normalizeFilters(in)
	assert.Equal(t, 1.0, in[0].Value)
	assert.Equal(t, int64(1), out[0].Value)
	assert.Nil(t, normalizeFilters(nil))
	assert.Nil(t, normalizeValues(nil))
}

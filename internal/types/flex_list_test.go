package types

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type condition struct {
	Field string `json:"field"`
}

func TestFlexListUnmarshal(t *testing.T) {
	var holder struct {
		Items FlexList[condition] `json:"items"`
	}

	require.NoError(t, json.Unmarshal([]byte(`{"items":[{"field":"a"},{"field":"b"}]}`), &holder))
	assert.Equal(t, []condition{{"a"}, {"b"}}, holder.Items.Slice())

	require.NoError(t, json.Unmarshal([]byte(`{"items":{"field":"c"}}`), &holder))
	assert.Equal(t, []condition{{"c"}}, holder.Items.Slice())

	require.NoError(t, json.Unmarshal([]byte(`{"items":null}`), &holder))
	assert.Nil(t, holder.Items)
}

func TestParseFlexList(t *testing.T) {
	list, err := ParseFlexList[int](" 7 ")
	require.NoError(t, err)
	assert.Equal(t, []int{7}, list.Slice())

	list, err = ParseFlexList[int]("[1,2]")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, list.Slice())

	_, err = ParseFlexList[int](`"x"`)
	assert.Error(t, err)
}

package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldsFromJSONKeepsDocumentOrder(t *testing.T) {
	fields, err := FieldsFromJSON([]byte(`{"To":"+15550001","From":"+15550000","Body":"hi"}`))
	require.NoError(t, err)

	assert.Equal(t, Fields{
		{Name: "To", Value: "+15550001"},
		{Name: "From", Value: "+15550000"},
		{Name: "Body", Value: "hi"},
	}, fields)
	assert.Equal(t, "To=%2B15550001&From=%2B15550000&Body=hi", fields.Encode())
}

func TestFieldsFromJSONScalarsAndArrays(t *testing.T) {
	fields, err := FieldsFromJSON([]byte(`{"Attempts":3,"Verbose":true,"Skip":null,"Empty":"","MediaUrl":["a","b"]}`))
	require.NoError(t, err)

	assert.Equal(t, Fields{
		{Name: "Attempts", Value: "3"},
		{Name: "Verbose", Value: "true"},
		{Name: "MediaUrl", Value: "a"},
		{Name: "MediaUrl", Value: "b"},
	}, fields)
}

func TestFieldsFromJSONRejectsNesting(t *testing.T) {
	_, err := FieldsFromJSON([]byte(`{"Attributes":{"a":1}}`))
	require.ErrorIs(t, err, ErrNestedField)

	_, err = FieldsFromJSON([]byte(`{"List":[["x"]]}`))
	require.ErrorIs(t, err, ErrNestedField)
}

func TestFieldsFromJSONRejectsNonObjects(t *testing.T) {
	_, err := FieldsFromJSON([]byte(`["To"]`))
	require.ErrorIs(t, err, ErrInvalidJSON)

	_, err = FieldsFromJSON([]byte(`{"To":`))
	require.ErrorIs(t, err, ErrInvalidJSON)
}

func TestFieldsFromJSONEmptyBody(t *testing.T) {
	fields, err := FieldsFromJSON([]byte("  \n"))
	require.NoError(t, err)
	assert.Empty(t, fields)
	assert.Equal(t, "", fields.Encode())
}

func TestFieldsFromForm(t *testing.T) {
	fields, err := FieldsFromForm("FriendlyName=Go+Room&UniqueName=&Attributes=%7B%7D")
	require.NoError(t, err)

	assert.Equal(t, Fields{
		{Name: "FriendlyName", Value: "Go Room"},
		{Name: "Attributes", Value: "{}"},
	}, fields)

	v, ok := fields.Get("FriendlyName")
	assert.True(t, ok)
	assert.Equal(t, "Go Room", v)

	_, ok = fields.Get("UniqueName")
	assert.False(t, ok)
}

func TestFieldsFromFormBadEscape(t *testing.T) {
	_, err := FieldsFromForm("Body=%zz")
	require.Error(t, err)
}

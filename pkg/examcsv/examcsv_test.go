package examcsv

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoRows = "id,year,language_pair,error_type,error_severity\n" +
	"1,2017,English-French,Spelling,Minor\n" +
	"2,2018,German-English,Grammar,Major"

func TestParseTwoRows(t *testing.T) {
	got, err := ParseString(twoRows)
	require.NoError(t, err)

	want := []Record{
		{ID: 1, Year: 2017, LanguagePair: "English-French", ErrorType: "Spelling", ErrorSeverity: "Minor", Line: 2},
		{ID: 2, Year: 2018, LanguagePair: "German-English", ErrorType: "Grammar", ErrorSeverity: "Major", Line: 3},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestParseColumnOrderAndExtras(t *testing.T) {
	doc := "error_severity,notes,language_pair,id,error_type,year\r\n" +
		"Minor,first sitting,English-French,5,Spelling,2017\r\n"
	got, err := ParseString(doc)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(5), got[0].ID)
	assert.Equal(t, 2017, got[0].Year)
	assert.Equal(t, "English-French", got[0].LanguagePair)
	assert.Equal(t, "Spelling", got[0].ErrorType)
	assert.Equal(t, "Minor", got[0].ErrorSeverity)
}

func TestParseHeaderWithBOMAndSpaces(t *testing.T) {
	doc := "\ufeffid, year , language_pair,error_type,error_severity\n3,2019,Spanish-English,Omission,Major\n"
	got, err := ParseString(doc)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(3), got[0].ID)
}

func TestParseZeroAndNegativeIDs(t *testing.T) {
	got, err := ParseString("id,year,language_pair,error_type,error_severity\n" +
		"0,2017,English-French,Spelling,Minor\n" +
		"-4,2018,German-English,Grammar,Major\n")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(0), got[0].ID)
	assert.Equal(t, int64(-4), got[1].ID)
}

func TestParseHeaderOnly(t *testing.T) {
	got, err := ParseString("id,year,language_pair,error_type,error_severity\n")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestParseEmptyDocument(t *testing.T) {
	_, err := ParseString("")
	assert.ErrorIs(t, err, ErrEmptyDocument)
}

func TestParseMissingColumns(t *testing.T) {
	_, err := ParseString("id,year,language\n1,2017,English-French\n")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingColumn)

	var he *HeaderError
	require.True(t, errors.As(err, &he))
	assert.Equal(t, []string{ColumnLanguagePair, ColumnErrorType, ColumnErrorSeverity}, he.Missing)
}

func TestParseDuplicateColumn(t *testing.T) {
	_, err := ParseString("id,id,year,language_pair,error_type,error_severity\n")
	var he *HeaderError
	require.True(t, errors.As(err, &he))
	assert.Equal(t, ColumnID, he.Duplicate)
}

func TestParseMalformedRows(t *testing.T) {
	header := "id,year,language_pair,error_type,error_severity\n"
	tests := []struct {
		name   string
		row    string
		column string
	}{
		{"short row", "1,2017,English-French\n", ""},
		{"non-numeric id", "abc,2017,English-French,Spelling,Minor\n", ColumnID},
		{"empty id", ",2017,English-French,Spelling,Minor\n", ColumnID},
		{"non-numeric year", "1,twenty,English-French,Spelling,Minor\n", ColumnYear},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := header + "9,2016,French-English,Grammar,Minor\n" + tt.row
			got, err := ParseString(doc)
			require.Error(t, err)
			assert.Nil(t, got, "no partial result on error")
			assert.ErrorIs(t, err, ErrMalformedRow)

			var re *RowError
			require.True(t, errors.As(err, &re))
			assert.Equal(t, 3, re.Line)
			assert.Equal(t, tt.column, re.Column)
		})
	}
}

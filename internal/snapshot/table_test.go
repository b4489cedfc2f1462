package snapshot

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/simplifiedchinese"
)

func str(s string) Cell { return &s }

func TestDecodeKeepsTextAndMarksAbsence(t *testing.T) {
	dec, err := NewDecoder(nil, "")
	require.NoError(t, err)

	in := "代码,名称,涨幅,封单\n" +
		"000001,平安银行,10.01,\n" +
		"600000,浦发银行,nan,NaN\n" +
		"300750,\"宁德,时代\",007,True\n"
	table, err := dec.Decode(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, table, 4)

	assert.Equal(t, Row{str("代码"), str("名称"), str("涨幅"), str("封单")}, table[0])
	assert.Equal(t, Row{str("000001"), str("平安银行"), str("10.01"), nil}, table[1])
	assert.Equal(t, Row{str("600000"), str("浦发银行"), nil, nil}, table[2])
	// No coercion: leading zeros and boolean-looking text survive.
	assert.Equal(t, Row{str("300750"), str("宁德,时代"), str("007"), str("True")}, table[3])
}

func TestDecodeOnlyConfiguredSentinelsAreAbsent(t *testing.T) {
	dec, err := NewDecoder(nil, "utf-8")
	require.NoError(t, err)

	table, err := dec.Decode(strings.NewReader("a,b,c\nNA,null,None\n"))
	require.NoError(t, err)
	assert.Equal(t, Row{str("NA"), str("null"), str("None")}, table[1])

	dec, err = NewDecoder([]string{"", "nan", "NaN", "NA", "null"}, "utf-8")
	require.NoError(t, err)
	table, err = dec.Decode(strings.NewReader("a,b,c\nNA,null,None\n"))
	require.NoError(t, err)
	assert.Equal(t, Row{nil, nil, str("None")}, table[1])
}

func TestDecodeShortRowsArePadded(t *testing.T) {
	dec, _ := NewDecoder(nil, "")
	table, err := dec.Decode(strings.NewReader("a,b,c\n1\n\n2,3\n"))
	require.NoError(t, err)
	require.Len(t, table, 3, "blank lines are skipped")
	assert.Equal(t, Row{str("1"), nil, nil}, table[1])
	assert.Equal(t, Row{str("2"), str("3"), nil}, table[2])
}

func TestDecodeLongRowFails(t *testing.T) {
	dec, _ := NewDecoder(nil, "")
	_, err := dec.Decode(strings.NewReader("a,b\n1,2,3\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRaggedRow))
}

func TestDecodeEmptyFails(t *testing.T) {
	dec, _ := NewDecoder(nil, "")
	_, err := dec.Decode(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrEmptyFile)
}

func TestDecodeStripsBOM(t *testing.T) {
	dec, _ := NewDecoder(nil, "")
	table, err := dec.Decode(strings.NewReader("\ufeffcode,name\n1,x\n"))
	require.NoError(t, err)
	assert.Equal(t, "code", *table[0][0])
}

func TestDecodeGBK(t *testing.T) {
	encoded, err := simplifiedchinese.GBK.NewEncoder().String("代码,名称\n000001,平安银行\n")
	require.NoError(t, err)

	dec, err := NewDecoder(nil, "GBK")
	require.NoError(t, err)
	table, err := dec.Decode(strings.NewReader(encoded))
	require.NoError(t, err)
	assert.Equal(t, Row{str("000001"), str("平安银行")}, table[1])
}

func TestDecodeInvalidUTF8Fails(t *testing.T) {
	dec, _ := NewDecoder(nil, "")
	_, err := dec.Decode(strings.NewReader("a,b\n\xc6\xbd\xb0\xb2,2\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidUTF8)
	assert.Contains(t, err.Error(), "line 2")

	// The same bytes are valid under an explicit GBK charset.
	dec, _ = NewDecoder(nil, "gbk")
	table, err := dec.Decode(strings.NewReader("a,b\n\xc6\xbd\xb0\xb2,2\n"))
	require.NoError(t, err)
	assert.Equal(t, "平安", *table[1][0])
}

func TestNewDecoderRejectsUnknownCharset(t *testing.T) {
	_, err := NewDecoder(nil, "latin1")
	assert.Error(t, err)
}

func TestTableStrings(t *testing.T) {
	table := Table{{str("a"), nil}, {nil, str("b")}}
	assert.Equal(t, [][]string{{"a", ""}, {"", "b"}}, table.Strings())
}

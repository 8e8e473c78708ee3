package table

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"cagedfetch/pkg/errors"
	"cagedfetch/pkg/logger"
)

func newTestDecoder() *Decoder {
	return NewDecoder(logger.NewTestLogger())
}

func TestDecodeLatin1Semicolon(t *testing.T) {
	// "salário" encoded as latin-1; invalid as UTF-8
	data := []byte("nome;sal\xe1rio\nana;1000\nbruno;2000\n")

	tbl, err := newTestDecoder().Decode(data, "202401_a.csv")
	require.NoError(t, err)

	assert.Equal(t, "latin1/semicolon", tbl.Scheme)
	assert.Equal(t, []string{"nome", "salário"}, tbl.Header)
	assert.Equal(t, 2, tbl.RowCount())
	assert.Equal(t, 2, tbl.ColumnCount())
}

func TestDecodeFallsBackToUTF8Comma(t *testing.T) {
	// No semicolons anywhere, so the first scheme cannot find a second
	// column; the comma/utf-8 attempt must win.
	data := []byte("col1,col2\nv1,v2\n")

	tbl, err := newTestDecoder().Decode(data, "202401_b.csv")
	require.NoError(t, err)

	assert.Equal(t, "utf8/comma", tbl.Scheme)
	assert.Equal(t, []string{"col1", "col2"}, tbl.Header)
	assert.Equal(t, 1, tbl.RowCount())
}

func TestDecodeSkipsMalformedRows(t *testing.T) {
	data := []byte("a;b\n1;2\nlonely\n3;4\n5;6;7\n")

	tbl, err := newTestDecoder().Decode(data, "202401_c.csv")
	require.NoError(t, err)

	assert.Equal(t, 2, tbl.RowCount())
	assert.Equal(t, 2, tbl.Dropped)
	assert.Equal(t, [][]string{{"1", "2"}, {"3", "4"}}, tbl.Rows)
}

func TestDecodeFailsUnderEveryScheme(t *testing.T) {
	// Single column under both delimiters, and invalid UTF-8 on top.
	data := []byte("coluna\xff\nvalor\n")

	tbl, err := newTestDecoder().Decode(data, "202401_d.csv")
	require.Error(t, err)
	assert.Nil(t, tbl)
	assert.True(t, errors.IsType(err, errors.ErrorTypeDecode))
}

func TestDecodeEmptyInput(t *testing.T) {
	tbl, err := newTestDecoder().Decode(nil, "202401_e.csv")
	require.Error(t, err)
	assert.Nil(t, tbl)
}

func TestDecodeWindows1252Scheme(t *testing.T) {
	// 0x93/0x94 are the cp1252 curly quotes
	schemes := []Scheme{{Name: "windows1252/semicolon", Delimiter: ';', Charset: charmap.Windows1252}}
	d := NewDecoderWithSchemes(schemes, logger.NewTestLogger())

	data := []byte("a;b\nx;\x93quoted\x94\n")
	tbl, err := d.Decode(data, "202401_f.csv")
	require.NoError(t, err)

	assert.Equal(t, "“quoted”", tbl.Rows[0][1])
}

func TestDefaultSchemesOrder(t *testing.T) {
	schemes := DefaultSchemes()
	require.Len(t, schemes, 3)

	assert.Equal(t, "latin1/semicolon", schemes[0].Name)
	assert.Equal(t, ';', int32(schemes[0].Delimiter))
	assert.Equal(t, "utf8/comma", schemes[1].Name)
	assert.Equal(t, ',', int32(schemes[1].Delimiter))
	assert.Equal(t, "windows1252/semicolon", schemes[2].Name)
	assert.Equal(t, ';', int32(schemes[2].Delimiter))
}

func TestDecodeFile(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/202401_g.csv"
	writeFile(t, path, "h1;h2\nr1;r2\n")

	tbl, err := newTestDecoder().DecodeFile(path, "202401_g.csv")
	require.NoError(t, err)
	assert.Equal(t, "202401_g.csv", tbl.Key)
	assert.Equal(t, 1, tbl.RowCount())
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}
}

package tabular

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/civic-risk-etl/internal/domain"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestReadFile(t *testing.T) {
	t.Run("basic", func(t *testing.T) {
		path := writeTemp(t, "address,district\n12 Oak St,D1\n9 Elm Ct,D2\n")
		table, err := ReadFile(path)
		require.NoError(t, err)

		assert.Equal(t, []string{"address", "district"}, table.Headers)
		require.Len(t, table.Rows, 2)
		assert.Equal(t, "12 Oak St", table.Rows[0]["address"])
		assert.Equal(t, "D2", table.Rows[1]["district"])
	})

	t.Run("strips BOM from first header", func(t *testing.T) {
		path := writeTemp(t, "\ufeffaddress,district\n12 Oak St,D1\n")
		table, err := ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"address", "district"}, table.Headers)
	})

	t.Run("pads short rows", func(t *testing.T) {
		path := writeTemp(t, "a,b,c\n1,2\n")
		table, err := ReadFile(path)
		require.NoError(t, err)

		require.Len(t, table.Rows, 1)
		assert.Equal(t, "2", table.Rows[0]["b"])
		assert.Equal(t, "", table.Rows[0]["c"])
	})

	t.Run("tolerates lazy quotes", func(t *testing.T) {
		path := writeTemp(t, "a,b\nval\"ue,2\n")
		table, err := ReadFile(path)
		require.NoError(t, err)
		require.Len(t, table.Rows, 1)
	})

	t.Run("empty file yields empty table", func(t *testing.T) {
		path := writeTemp(t, "")
		table, err := ReadFile(path)
		require.NoError(t, err)
		assert.True(t, table.Empty())
	})

	t.Run("missing file is ErrNotFound", func(t *testing.T) {
		_, err := ReadFile(filepath.Join(t.TempDir(), "absent.csv"))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestWriteFile(t *testing.T) {
	t.Run("stable header order and missing cells", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "out.csv")
		rows := []domain.RawRow{
			{"a": "1", "b": "2"},
			{"a": "3"},
		}
		require.NoError(t, WriteFile(path, []string{"a", "b"}, rows))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "a,b\n1,2\n3,\n", string(data))
	})

	t.Run("round trip", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out.csv")
		headers := []string{"address", "score"}
		rows := []domain.RawRow{
			{"address": "12 Oak St, Apt 2", "score": "10.5000"},
			{"address": "9 Elm Ct", "score": "0.0000"},
		}
		require.NoError(t, WriteFile(path, headers, rows))

		table, err := ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, headers, table.Headers)
		assert.Equal(t, rows, table.Rows)
	})

	t.Run("reruns are byte identical", func(t *testing.T) {
		dir := t.TempDir()
		headers := []string{"k", "v"}
		rows := []domain.RawRow{{"k": "x", "v": "1"}}

		first := filepath.Join(dir, "first.csv")
		second := filepath.Join(dir, "second.csv")
		require.NoError(t, WriteFile(first, headers, rows))
		require.NoError(t, WriteFile(second, headers, rows))

		a, err := os.ReadFile(first)
		require.NoError(t, err)
		b, err := os.ReadFile(second)
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

const profileB = `{"name":"Beta College","signup_url":"https://b.edu/s","login_url":"https://b.edu/l","application_url":"https://b.edu/a","field_mapping":{"first_name":"#f"}}`
const profileA = `{"name":"Alpha University","signup_url":"https://a.edu/s","login_url":"https://a.edu/l","application_url":"https://a.edu/a","field_mapping":{"first_name":"#f"}}`

func TestLoadTargets(t *testing.T) {
	t.Run("loads sorted by file name", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "b.json", profileB)
		writeFile(t, dir, "a.json", profileA)
		writeFile(t, dir, "notes.txt", "ignored")

		targets, err := LoadTargets(dir)
		require.NoError(t, err)
		require.Len(t, targets, 2)
		assert.Equal(t, "Alpha University", targets[0].Name)
		assert.Equal(t, "Beta College", targets[1].Name)
	})

	t.Run("duplicate names are rejected", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "a.json", profileA)
		writeFile(t, dir, "a2.json", profileA)

		_, err := LoadTargets(dir)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "defined twice")
	})

	t.Run("invalid profile names the file", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "broken.json", `{"name":"X"}`)

		_, err := LoadTargets(dir)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "broken.json")
	})
}

func TestSelectTargets(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.json", profileA)
	writeFile(t, dir, "b.json", profileB)
	all, err := LoadTargets(dir)
	require.NoError(t, err)

	selected, err := SelectTargets(all, []string{"beta college", "Alpha University"})
	require.NoError(t, err)
	require.Len(t, selected, 2)
	assert.Equal(t, "Beta College", selected[0].Name)

	same, err := SelectTargets(all, nil)
	require.NoError(t, err)
	assert.Len(t, same, 2)

	_, err = SelectTargets(all, []string{"Gamma"})
	assert.ErrorIs(t, err, ErrTargetNotFound)
}

func TestWriteTargetTemplate(t *testing.T) {
	dir := t.TempDir()

	path, err := WriteTargetTemplate(dir, "Example State University")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "example_state_university.json"), path)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), `"signup_field_mapping"`)
	assert.Contains(t, string(content), `"extracurriculars"`)

	_, err = WriteTargetTemplate(dir, "Example State University")
	assert.Error(t, err, "an existing template is never overwritten")
}

func TestLoadRecords(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "records.json", `[{"id":1,"first_name":"A","last_name":"B","email":"a@b.com"}]`)

	records, err := LoadRecords(filepath.Join(dir, "records.json"))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(1), records[0].ID)

	_, err = LoadRecords(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

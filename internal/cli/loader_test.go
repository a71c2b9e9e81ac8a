package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validTemplateCUE = `package templates

template: sepsis: {
	description: "Two-bed sepsis drill"

	patients: bed1: {
		name:      "Jordan Avery"
		diagnosis: "Suspected sepsis"
		baseline_vitals: {
			heart_rate:   88
			resp_rate:    18
			systolic_bp:  122
			diastolic_bp: 78
			spo2:         97
			temp_deci_c:  372
		}
	}

	medications: ceftriaxone: {
		patient:  "bed1"
		name:     "Ceftriaxone"
		dose_ucg: 1000000
		route:    "IV"
	}
}
`

func writeTemplateDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644)
		require.NoError(t, err)
	}
	return dir
}

func TestLoadTemplates(t *testing.T) {
	dir := writeTemplateDir(t, map[string]string{"sepsis.cue": validTemplateCUE})

	result, errs := LoadTemplates(dir, LoadModeFailFast)
	require.Empty(t, errs)
	require.NotNil(t, result)
	assert.Equal(t, 1, result.FileCount)
	require.Len(t, result.Templates, 1)
	assert.Equal(t, "sepsis", result.Templates[0].Name)
	assert.Len(t, result.Templates[0].State.Patients, 1)
	assert.Len(t, result.Templates[0].State.Medications, 1)
}

func TestLoadTemplates_MissingDirectory(t *testing.T) {
	_, errs := LoadTemplates("/nonexistent/templates", LoadModeFailFast)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "template directory not found")
	assert.Contains(t, errs[0].Error(), ErrCodeNotFound)
}

func TestLoadTemplates_NotADirectory(t *testing.T) {
	dir := writeTemplateDir(t, map[string]string{"sepsis.cue": validTemplateCUE})

	_, errs := LoadTemplates(filepath.Join(dir, "sepsis.cue"), LoadModeFailFast)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "not a directory")
}

func TestLoadTemplates_NoCUEFiles(t *testing.T) {
	dir := writeTemplateDir(t, map[string]string{"readme.txt": "nothing here"})

	_, errs := LoadTemplates(dir, LoadModeFailFast)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "no CUE files found")
	assert.Contains(t, errs[0].Error(), ErrCodeNoFiles)
}

func TestLoadTemplates_SyntaxError(t *testing.T) {
	dir := writeTemplateDir(t, map[string]string{"broken.cue": "template: { unclosed"})

	_, errs := LoadTemplates(dir, LoadModeFailFast)
	require.NotEmpty(t, errs)
}

func TestLoadTemplates_CompileErrorFailFast(t *testing.T) {
	// Two bad templates: fail-fast stops at the first.
	bad := `package templates

template: one: { description: "no patients" }
template: two: { description: "no patients either" }
`
	dir := writeTemplateDir(t, map[string]string{"bad.cue": bad})

	result, errs := LoadTemplates(dir, LoadModeFailFast)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "at least one patient is required")
	assert.Empty(t, result.Templates)
}

func TestLoadTemplates_CollectAllErrors(t *testing.T) {
	bad := `package templates

template: one: { description: "no patients" }
template: two: { description: "no patients either" }
`
	dir := writeTemplateDir(t, map[string]string{"bad.cue": bad})

	_, errs := LoadTemplates(dir, LoadModeCollectAll)
	assert.Len(t, errs, 2)
}

func TestLoadTemplates_MixedValidAndInvalid(t *testing.T) {
	mixed := validTemplateCUE + `
template: broken: { description: "no patients" }
`

	dir := writeTemplateDir(t, map[string]string{"mixed.cue": mixed})

	result, errs := LoadTemplates(dir, LoadModeCollectAll)
	assert.Len(t, errs, 1)
	require.Len(t, result.Templates, 1)
	assert.Equal(t, "sepsis", result.Templates[0].Name)
}

func TestLoadTemplates_NoTemplates(t *testing.T) {
	dir := writeTemplateDir(t, map[string]string{"empty.cue": "package templates\n\nother: {}"})

	_, errs := LoadTemplates(dir, LoadModeFailFast)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "no templates found")
}

func TestFindCUEFiles(t *testing.T) {
	dir := writeTemplateDir(t, map[string]string{
		"a.cue":      "a: 1",
		"b.cue":      "b: 2",
		"readme.txt": "not cue",
	})
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "c.cue"), []byte("c: 3"), 0o644))

	files, err := FindCUEFiles(dir)
	require.NoError(t, err)
	assert.Len(t, files, 3)
}

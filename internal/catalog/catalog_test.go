package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	apperrors "github.com/gmsas95/recovery-tracker/internal/errors"
	"github.com/gmsas95/recovery-tracker/internal/recovery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const smallCatalog = `
version: 1
programs:
  knee:
    phases:
      - name: daily
        from: 1
        to: 30
        tasks:
          - title: Medication
            category: medication
            duration_minutes: 5
            difficulty: 1
      - name: early
        from: 1
        to: 3
        tasks:
          - title: Ankle pumps
            category: exercise
            duration_minutes: 5
            difficulty: 1
          - title: Quad sets
            category: exercise
            duration_minutes: 10
            difficulty: 2
  heart:
    phases:
      - name: late
        from: 20
        to: 30
        tasks:
          - title: Walk
            category: exercise
            duration_minutes: 30
            difficulty: 3
`

func TestDefault_CoversEveryProgramDay(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	assert.Equal(t, BuiltinSource, c.Source())

	ctx := context.Background()
	for _, st := range recovery.SurgeryTypes {
		for day := 1; day <= recovery.ProgramLength; day++ {
			templates, err := c.Templates(ctx, st, day)
			require.NoError(t, err)
			assert.NotEmpty(t, templates, "%s day %d", st, day)

			keys := make(map[string]bool)
			for i, tpl := range templates {
				assert.Equal(t, i+1, tpl.Sequence)
				assert.Equal(t, st, tpl.SurgeryType)
				assert.Equal(t, day, tpl.DayNumber)
				assert.False(t, keys[tpl.Key], "duplicate key %s", tpl.Key)
				keys[tpl.Key] = true
			}
		}
	}
}

func TestDefault_KneeDayOne(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	templates, err := c.Templates(context.Background(), recovery.SurgeryKnee, 1)
	require.NoError(t, err)
	require.Len(t, templates, 5)
	assert.Equal(t, "knee-d1-01", templates[0].Key)
	assert.Equal(t, recovery.CategoryMedication, templates[0].Category)
	assert.Equal(t, "knee-d1-05", templates[4].Key)
}

func TestParse_ExpandsPhases(t *testing.T) {
	c, err := Parse([]byte(smallCatalog))
	require.NoError(t, err)
	ctx := context.Background()

	day2, err := c.Templates(ctx, recovery.SurgeryKnee, 2)
	require.NoError(t, err)
	require.Len(t, day2, 3)
	assert.Equal(t, "Medication", day2[0].Title)
	assert.Equal(t, "Ankle pumps", day2[1].Title)
	assert.Equal(t, "knee-d2-03", day2[2].Key)

	day4, err := c.Templates(ctx, recovery.SurgeryKnee, 4)
	require.NoError(t, err)
	assert.Len(t, day4, 1)

	// no phase covers heart day 1
	heart, err := c.Templates(ctx, recovery.SurgeryHeart, 1)
	require.NoError(t, err)
	assert.Empty(t, heart)

	// cesarean is absent from the file
	ces, err := c.Templates(ctx, recovery.SurgeryCesarean, 10)
	require.NoError(t, err)
	assert.Empty(t, ces)
}

func TestParse_ExplicitKeysSurviveInsertion(t *testing.T) {
	const before = `
programs:
  knee:
    phases:
      - name: early
        from: 1
        to: 3
        tasks:
          - {key: ankle-pumps, title: Ankle pumps, category: exercise, difficulty: 1}
          - {title: Quad sets, category: exercise, difficulty: 2}
`
	const after = `
programs:
  knee:
    phases:
      - name: daily
        from: 1
        to: 30
        tasks:
          - {key: medication, title: Medication, category: medication, difficulty: 1}
      - name: early
        from: 1
        to: 3
        tasks:
          - {key: ankle-pumps, title: Ankle pumps, category: exercise, difficulty: 1}
          - {title: Quad sets, category: exercise, difficulty: 2}
`
	ctx := context.Background()

	old, err := Parse([]byte(before))
	require.NoError(t, err)
	oldDay, err := old.Templates(ctx, recovery.SurgeryKnee, 2)
	require.NoError(t, err)

	edited, err := Parse([]byte(after))
	require.NoError(t, err)
	newDay, err := edited.Templates(ctx, recovery.SurgeryKnee, 2)
	require.NoError(t, err)
	require.Len(t, newDay, 3)

	assert.Equal(t, "knee-d2-ankle-pumps", oldDay[0].Key)
	assert.Equal(t, oldDay[0].Key, newDay[1].Key, "explicit key is independent of position")
	assert.Equal(t, 2, newDay[1].Sequence)
	assert.Equal(t, "knee-d2-medication", newDay[0].Key)

	// positional keys still shift
	assert.Equal(t, "knee-d2-02", oldDay[1].Key)
	assert.Equal(t, "knee-d2-03", newDay[2].Key)
}

func TestTemplates_RejectsBadInput(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	ctx := context.Background()

	_, err = c.Templates(ctx, "hip", 1)
	assert.ErrorIs(t, err, apperrors.ErrInvalidSurgeryType)

	_, err = c.Templates(ctx, recovery.SurgeryKnee, 0)
	assert.ErrorIs(t, err, apperrors.ErrInvalidDay)

	_, err = c.Templates(ctx, recovery.SurgeryKnee, 31)
	assert.ErrorIs(t, err, apperrors.ErrInvalidDay)
}

func TestTemplates_ReturnsCopy(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	ctx := context.Background()

	first, err := c.Templates(ctx, recovery.SurgeryHeart, 1)
	require.NoError(t, err)
	first[0].Title = "changed"

	second, err := c.Templates(ctx, recovery.SurgeryHeart, 1)
	require.NoError(t, err)
	assert.NotEqual(t, "changed", second[0].Title)
}

func TestParse_Validation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"not yaml", "programs: [unterminated"},
		{"no programs", "version: 1\n"},
		{"unknown surgery type", `
programs:
  hip:
    phases:
      - {from: 1, to: 2, tasks: [{title: Walk, category: exercise, difficulty: 1}]}
`},
		{"day range out of bounds", `
programs:
  knee:
    phases:
      - {from: 25, to: 31, tasks: [{title: Walk, category: exercise, difficulty: 1}]}
`},
		{"inverted range", `
programs:
  knee:
    phases:
      - {from: 5, to: 2, tasks: [{title: Walk, category: exercise, difficulty: 1}]}
`},
		{"unknown category", `
programs:
  knee:
    phases:
      - {from: 1, to: 2, tasks: [{title: Walk, category: dancing, difficulty: 1}]}
`},
		{"difficulty too high", `
programs:
  knee:
    phases:
      - {from: 1, to: 2, tasks: [{title: Walk, category: exercise, difficulty: 6}]}
`},
		{"missing title", `
programs:
  knee:
    phases:
      - {from: 1, to: 2, tasks: [{category: exercise, difficulty: 1}]}
`},
		{"malformed key", `
programs:
  knee:
    phases:
      - {from: 1, to: 2, tasks: [{key: "01", title: Walk, category: exercise, difficulty: 1}]}
`},
		{"duplicate key on a day", `
programs:
  knee:
    phases:
      - {from: 1, to: 5, tasks: [{key: walk, title: Walk, category: exercise, difficulty: 1}]}
      - {from: 5, to: 6, tasks: [{key: walk, title: Long walk, category: exercise, difficulty: 2}]}
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrCatalogInvalid)
		})
	}
}

func TestLoad(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, BuiltinSource, c.Source())

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(smallCatalog), 0644))

	c, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, c.Source())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestReload_KeepsPreviousOnError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(smallCatalog), 0644))

	c, err := Load(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("programs: {}"), 0644))
	assert.Error(t, c.Reload(path))

	templates, err := c.Templates(context.Background(), recovery.SurgeryKnee, 1)
	require.NoError(t, err)
	assert.Len(t, templates, 3)
}

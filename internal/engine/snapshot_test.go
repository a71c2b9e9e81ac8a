package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haclabs/simcore/internal/sim"
)

func TestCreateSnapshot_VersionsIncrease(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	templateID, err := eng.SaveTemplate(ctx, instructor, wardTemplate())
	require.NoError(t, err)

	first, err := eng.CreateSnapshot(ctx, instructor, templateID, "", "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.Version)

	second, err := eng.CreateSnapshot(ctx, instructor, templateID, "v2", "tightened vitals")
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.Version)
	assert.Equal(t, "v2", second.Name)

	// Name defaults to the template's name.
	assert.Equal(t, "sepsis-ward", first.Name)
}

func TestCreateSnapshot_UnknownTemplate(t *testing.T) {
	eng, _ := newTestEngine(t)

	_, err := eng.CreateSnapshot(context.Background(), instructor, "missing", "", "")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestSnapshot_ImmutableUnderTemplateEdits(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	templateID, err := eng.SaveTemplate(ctx, instructor, wardTemplate())
	require.NoError(t, err)
	snap, err := eng.CreateSnapshot(ctx, instructor, templateID, "", "")
	require.NoError(t, err)

	// Edit the template after snapshotting.
	edited := wardTemplate()
	edited.State.Patients[0].Name = "Someone Else"
	edited.State.Medications[0].DoseUCG = 2000000
	_, err = eng.SaveTemplate(ctx, instructor, edited)
	require.NoError(t, err)

	// The snapshot still carries the original state, verified by hash.
	got, err := eng.GetSnapshot(ctx, instructor, snap.ID)
	require.NoError(t, err)
	state, err := sim.DecodeState(got.Document, got.DocHash)
	require.NoError(t, err)
	assert.Equal(t, "Jordan Avery", state.Patients[0].Name)
	assert.Equal(t, int64(1000000), state.Medications[0].DoseUCG)
}

func TestGetSnapshot_DetectsTamperedDocument(t *testing.T) {
	eng, s := newTestEngine(t)
	ctx := context.Background()

	templateID, err := eng.SaveTemplate(ctx, instructor, wardTemplate())
	require.NoError(t, err)
	snap, err := eng.CreateSnapshot(ctx, instructor, templateID, "", "")
	require.NoError(t, err)

	// Modify the stored document behind the engine's back.
	_, err = s.DB().Exec(`UPDATE snapshots SET document = ? WHERE id = ?`,
		`{"alerts":[],"medications":[],"patients":[]}`, snap.ID)
	require.NoError(t, err)

	_, err = eng.GetSnapshot(ctx, instructor, snap.ID)
	require.Error(t, err)
	assert.True(t, IsSerialization(err))
	assert.Contains(t, err.Error(), "document hash mismatch")
}

func TestListSnapshots_NewestFirst(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	templateID, err := eng.SaveTemplate(ctx, instructor, wardTemplate())
	require.NoError(t, err)
	_, err = eng.CreateSnapshot(ctx, instructor, templateID, "", "")
	require.NoError(t, err)
	_, err = eng.CreateSnapshot(ctx, instructor, templateID, "", "")
	require.NoError(t, err)

	snaps, err := eng.ListSnapshots(ctx, instructor, templateID)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, int64(2), snaps[0].Version)
	assert.Equal(t, int64(1), snaps[1].Version)
}

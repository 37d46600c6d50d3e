package export

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piwi3910/bompack/internal/model"
)

func TestExportLabels_CreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.pdf")
	require.NoError(t, ExportLabels(path, buildTestResult(), testNames))
	assertNonEmptyFile(t, path)
}

func TestExportLabels_SpansPages(t *testing.T) {
	var bin model.Bin
	for i := 0; i < labelsPerPage+5; i++ {
		bin.Placements = append(bin.Placements, model.Placement{X: float64(i), Width: 1, Height: 1, SourceIndex: i})
	}
	path := filepath.Join(t.TempDir(), "labels.pdf")
	require.NoError(t, ExportLabels(path, model.Result{Bins: []model.Bin{bin}}, nil))
	assertNonEmptyFile(t, path)
}

func TestExportLabels_NoPlacements(t *testing.T) {
	path := filepath.Join(t.TempDir(), "none.pdf")
	assert.ErrorIs(t, ExportLabels(path, model.Result{}, nil), ErrNoPlacements)
}

func TestCollectLabelInfos(t *testing.T) {
	labels := CollectLabelInfos(buildTestResult(), testNames)
	require.Len(t, labels, 4)

	assert.Equal(t, LabelInfo{Part: "Side Panel", Bin: 1, Width: 24, Height: 30}, labels[0])
	assert.Equal(t, 90.0, labels[2].Rotation)
	assert.Equal(t, "Back Panel", labels[3].Part)
	assert.Equal(t, 2, labels[3].Bin)
	assert.True(t, labels[3].Flipped)
}

func TestLabelInfo_QRPayloadKeys(t *testing.T) {
	data, err := json.Marshal(LabelInfo{Part: "Top", Bin: 1, X: 24, Y: 0, Width: 20, Height: 12, Rotation: 90})
	require.NoError(t, err)
	assert.JSONEq(t, `{"part":"Top","bin":1,"x":24,"y":0,"w":20,"h":12,"rotation":90}`, string(data))
}

func TestLabelSheetSlots(t *testing.T) {
	x, y := avery5160.slot(0)
	assert.Equal(t, [2]float64{4.8, 12.7}, [2]float64{x, y})

	x, y = avery5160.slot(4)
	assert.InDelta(t, 4.8+66.7, x, 1e-9)
	assert.InDelta(t, 12.7+25.4, y, 1e-9)

	// The next page starts over at the first slot.
	x, y = avery5160.slot(labelsPerPage)
	assert.Equal(t, [2]float64{4.8, 12.7}, [2]float64{x, y})
}

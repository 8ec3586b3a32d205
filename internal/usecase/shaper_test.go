package usecase_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DRSN-tech/inference-pipeline/internal/cfg"
	"github.com/DRSN-tech/inference-pipeline/internal/domain"
	"github.com/DRSN-tech/inference-pipeline/internal/usecase"
	"github.com/DRSN-tech/inference-pipeline/pkg/e"
)

func twoRowBatch() domain.Batch {
	return domain.NewBatch([]domain.Row{
		{ItemID: "i0", MarketplaceID: "000000", ImgID: "img0", ProductType: "FLAT_SHEET"},
		{ItemID: "i1", MarketplaceID: "000000", ImgID: "img1", ProductType: "FLAT_SHEET"},
	})
}

func twoRowNeighbors() *usecase.NeighborRes {
	return usecase.NewNeighborRes(
		[][]string{{"n0", "n1", "n2"}, {"n3", "n4"}},
		[][]float64{{0.1, 0.2, 0.3}, {0.4, 0.5}},
	)
}

func TestShape_OneToOne(t *testing.T) {
	records, err := usecase.Shape(twoRowBatch(), twoRowNeighbors(), cfg.ShapeModeOneToOne)
	require.NoError(t, err)

	// 3 соседа строки 0 + 2 соседа строки 1 = 5 выходных строк.
	require.Len(t, records, 5)

	// Каждая выходная строка несёт item_id/img_id своей исходной строки
	// и пару из её собственного списка соседей.
	for i := 0; i < 3; i++ {
		assert.Equal(t, "i0", records[i][domain.ColItemID])
		assert.Equal(t, "img0", records[i][domain.ColImgID])
	}
	assert.Equal(t, "n0", records[0][domain.ColNeighborItemIDs])
	assert.Equal(t, "0.1", records[0][domain.ColNeighborsDist])
	assert.Equal(t, "n2", records[2][domain.ColNeighborItemIDs])

	for i := 3; i < 5; i++ {
		assert.Equal(t, "i1", records[i][domain.ColItemID])
		assert.Equal(t, "img1", records[i][domain.ColImgID])
	}
	assert.Equal(t, "n3", records[3][domain.ColNeighborItemIDs])
	assert.Equal(t, "0.5", records[4][domain.ColNeighborsDist])
}

func TestShape_OneToOne_MismatchedListCount(t *testing.T) {
	res := usecase.NewNeighborRes(
		[][]string{{"n0"}},
		[][]float64{{0.1}},
	)

	_, err := usecase.Shape(twoRowBatch(), res, cfg.ShapeModeOneToOne)
	require.Error(t, err)
	assert.ErrorIs(t, err, e.ErrNeighborMismatch)
}

func TestShape_CrossProductCompatibilityMode(t *testing.T) {
	records, err := usecase.Shape(twoRowBatch(), twoRowNeighbors(), cfg.ShapeModeCrossProduct)
	require.NoError(t, err)

	// Историческое поведение: каждый список соседей скрещивается с каждой строкой:
	// (3+2) пар × 2 строки = 10 выходных строк.
	require.Len(t, records, 10)

	// Первый список соседей применён к обеим строкам.
	assert.Equal(t, "i0", records[0][domain.ColItemID])
	assert.Equal(t, "n0", records[0][domain.ColNeighborItemIDs])
	assert.Equal(t, "i1", records[3][domain.ColItemID])
	assert.Equal(t, "n0", records[3][domain.ColNeighborItemIDs])
}

func TestShape_UnknownMode(t *testing.T) {
	_, err := usecase.Shape(twoRowBatch(), twoRowNeighbors(), "diagonal")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown shape mode")
}

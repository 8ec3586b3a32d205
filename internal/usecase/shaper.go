package usecase

import (
	"fmt"
	"strconv"

	"github.com/DRSN-tech/inference-pipeline/internal/cfg"
	"github.com/DRSN-tech/inference-pipeline/internal/domain"
	"github.com/DRSN-tech/inference-pipeline/pkg/e"
)

// SuccessColumns — колонки результатной строки в порядке записи в артефакт.
var SuccessColumns = []string{
	domain.ColItemID,
	domain.ColMarketplaceID,
	domain.ColImgID,
	domain.ColProductType,
	domain.ColNeighborItemIDs,
	domain.ColNeighborsDist,
}

// Shape разворачивает вложенный ответ цепочки инференса в плоские результатные строки.
//
// В режиме one-to-one i-й список соседей принадлежит i-й строке батча: по одной
// выходной строке на пару (сосед, расстояние) собственного списка строки.
// Режим cross-product воспроизводит историческое поведение источника данных:
// каждый список соседей скрещивается с каждой строкой батча. Он оставлен как
// документированный режим совместимости, пока потребители выгрузки не подтвердят
// ожидаемую семантику.
func Shape(batch domain.Batch, res *NeighborRes, mode string) ([]map[string]string, error) {
	const op = "usecase.Shape"

	switch mode {
	case cfg.ShapeModeOneToOne:
		return shapeOneToOne(batch, res, op)
	case cfg.ShapeModeCrossProduct:
		return shapeCrossProduct(batch, res), nil
	default:
		return nil, e.Wrap(op, fmt.Errorf("unknown shape mode: %q", mode))
	}
}

func shapeOneToOne(batch domain.Batch, res *NeighborRes, op string) ([]map[string]string, error) {
	if len(res.ItemIDs) != batch.Len() || len(res.Distances) != batch.Len() {
		return nil, e.Wrap(op, fmt.Errorf("%w: rows=%d, neighbor lists=%d, distance lists=%d",
			e.ErrNeighborMismatch, batch.Len(), len(res.ItemIDs), len(res.Distances)))
	}

	var records []map[string]string
	for i, row := range batch.Rows {
		ids := res.ItemIDs[i]
		dists := res.Distances[i]
		for j := 0; j < len(ids) && j < len(dists); j++ {
			records = append(records, successRecord(row, ids[j], dists[j]))
		}
	}

	return records, nil
}

func shapeCrossProduct(batch domain.Batch, res *NeighborRes) []map[string]string {
	var records []map[string]string
	for k := 0; k < len(res.ItemIDs) && k < len(res.Distances); k++ {
		ids := res.ItemIDs[k]
		dists := res.Distances[k]
		for _, row := range batch.Rows {
			for j := 0; j < len(ids) && j < len(dists); j++ {
				records = append(records, successRecord(row, ids[j], dists[j]))
			}
		}
	}

	return records
}

func successRecord(row domain.Row, neighborID string, distance float64) map[string]string {
	return map[string]string{
		domain.ColItemID:          row.ItemID,
		domain.ColMarketplaceID:   row.MarketplaceID,
		domain.ColImgID:           row.ImgID,
		domain.ColProductType:     row.ProductType,
		domain.ColNeighborItemIDs: neighborID,
		domain.ColNeighborsDist:   strconv.FormatFloat(distance, 'g', -1, 64),
	}
}

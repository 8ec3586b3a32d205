package usecase

import "github.com/DRSN-tech/inference-pipeline/internal/domain"

// Partition группирует строки сначала по типу продукта, затем по маркетплейсу
// (в порядке первого появления, с сохранением исходного порядка строк внутри группы)
// и режет каждую группу на батчи размером не более batchSize.
// Каждая строка входа попадает ровно в один батч.
func Partition(rows []domain.Row, batchSize int) []domain.Batch {
	var batches []domain.Batch
	for _, ptGroup := range groupBy(rows, func(r domain.Row) string { return r.ProductType }) {
		for _, mpGroup := range groupBy(ptGroup, func(r domain.Row) string { return r.MarketplaceID }) {
			batches = append(batches, chunk(mpGroup, batchSize)...)
		}
	}

	return batches
}

// groupBy разбивает строки на группы по ключу, сохраняя порядок первого появления ключей.
func groupBy(rows []domain.Row, key func(domain.Row) string) [][]domain.Row {
	var (
		order  []string
		groups = make(map[string][]domain.Row)
	)

	for _, row := range rows {
		k := key(row)
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], row)
	}

	result := make([][]domain.Row, 0, len(order))
	for _, k := range order {
		result = append(result, groups[k])
	}

	return result
}

// chunk режет однородную группу на полные батчи и неполный остаток.
func chunk(rows []domain.Row, batchSize int) []domain.Batch {
	var batches []domain.Batch
	for start := 0; start < len(rows); start += batchSize {
		end := start + batchSize
		if end > len(rows) {
			end = len(rows)
		}
		batches = append(batches, domain.NewBatch(rows[start:end]))
	}

	return batches
}

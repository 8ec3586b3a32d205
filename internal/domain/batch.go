package domain

import "fmt"

// Batch — упорядоченная непустая группа строк, однородная по типу продукта
// и маркетплейсу. Создаётся партиционером, потребляется цепочкой инференса.
type Batch struct {
	Rows []Row
}

func NewBatch(rows []Row) Batch {
	return Batch{Rows: rows}
}

func (b Batch) Len() int {
	return len(b.Rows)
}

// ProductType возвращает тип продукта батча (у всех строк он один).
func (b Batch) ProductType() string {
	if len(b.Rows) == 0 {
		return ""
	}
	return b.Rows[0].ProductType
}

// MarketplaceID возвращает маркетплейс батча (у всех строк он один).
func (b Batch) MarketplaceID() string {
	if len(b.Rows) == 0 {
		return ""
	}
	return b.Rows[0].MarketplaceID
}

// ImgIDs возвращает идентификаторы изображений в порядке строк батча.
func (b Batch) ImgIDs() []string {
	ids := make([]string, 0, len(b.Rows))
	for _, row := range b.Rows {
		ids = append(ids, row.ImgID)
	}
	return ids
}

// Key — человекочитаемый ключ батча для логов и событий статуса.
func (b Batch) Key() string {
	return fmt.Sprintf("%s/%s", b.ProductType(), b.MarketplaceID())
}

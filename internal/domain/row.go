package domain

// Канонические колонки датасета и результата.
const (
	ColItemID          = "item_id"
	ColMarketplaceID   = "marketplace_id"
	ColImgID           = "img_id"
	ColProductType     = "product_type"
	ColNeighborItemIDs = "neighbor_item_ids"
	ColNeighborsDist   = "neighbors_dist"
	ColErrorStatus     = "ErrorStatus"
)

// Row описывает одну строку датасета. Неизменяема после чтения из источника.
// Extra хранит сквозные колонки, не входящие в канонический набор.
type Row struct {
	ItemID        string
	MarketplaceID string
	ImgID         string
	ProductType   string
	Extra         map[string]string
}

// Value возвращает значение колонки по имени.
func (r Row) Value(col string) string {
	switch col {
	case ColItemID:
		return r.ItemID
	case ColMarketplaceID:
		return r.MarketplaceID
	case ColImgID:
		return r.ImgID
	case ColProductType:
		return r.ProductType
	default:
		return r.Extra[col]
	}
}

// Record разворачивает строку в запись по заданному списку колонок.
func (r Row) Record(columns []string) map[string]string {
	record := make(map[string]string, len(columns))
	for _, col := range columns {
		record[col] = r.Value(col)
	}

	return record
}

package usecase

// NeighborRes — результат цепочки инференса для одного батча:
// параллельные списки кандидатов и расстояний, один внешний элемент
// на каждую входную строку батча.
type NeighborRes struct {
	ItemIDs   [][]string
	Distances [][]float64
}

func NewNeighborRes(itemIDs [][]string, distances [][]float64) *NeighborRes {
	return &NeighborRes{
		ItemIDs:   itemIDs,
		Distances: distances,
	}
}

package domain

import (
	"fmt"

	"github.com/DRSN-tech/inference-pipeline/pkg/e"
)

// MarketplaceRegistry — статический справочник marketplace_id -> код региона.
// Таблица задаётся конфигурацией и передаётся всем потребителям по ссылке.
type MarketplaceRegistry struct {
	regions map[string]string
}

func NewMarketplaceRegistry(table map[string]string) *MarketplaceRegistry {
	return &MarketplaceRegistry{regions: table}
}

// RegionFor возвращает код региона для маркетплейса.
// Неизвестный идентификатор — ошибка уровня батча, а не причина падения прогона.
func (m *MarketplaceRegistry) RegionFor(marketplaceID string) (string, error) {
	region, ok := m.regions[marketplaceID]
	if !ok {
		return "", fmt.Errorf("%w: %s", e.ErrUnknownMarketplace, marketplaceID)
	}

	return region, nil
}

package domain

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/DRSN-tech/inference-pipeline/pkg/e"
)

// requiredColumns — колонки, без которых строка не может пройти через пайплайн.
var requiredColumns = []string{ColItemID, ColMarketplaceID, ColImgID, ColProductType}

// Dataset — объединённый табличный датасет.
// Columns сохраняет порядок колонок первого появления при объединении файлов.
type Dataset struct {
	Columns []string
	Rows    []Row
}

func NewDataset() *Dataset {
	return &Dataset{}
}

func (d *Dataset) Len() int {
	return len(d.Rows)
}

// Merge дописывает строки другого датасета, объединяя списки колонок
// в порядке первого появления.
func (d *Dataset) Merge(other *Dataset) {
	if other == nil {
		return
	}

	seen := make(map[string]struct{}, len(d.Columns))
	for _, col := range d.Columns {
		seen[col] = struct{}{}
	}
	for _, col := range other.Columns {
		if _, ok := seen[col]; !ok {
			d.Columns = append(d.Columns, col)
			seen[col] = struct{}{}
		}
	}

	d.Rows = append(d.Rows, other.Rows...)
}

// ReadDatasetCSV читает один CSV-файл в Dataset.
// Первая запись трактуется как заголовок; канонические колонки обязательны.
func ReadDatasetCSV(r io.Reader) (*Dataset, error) {
	const op = "domain.ReadDatasetCSV"

	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, e.Wrap(op, e.ErrEmptyDataset)
		}
		return nil, e.Wrap(op, err)
	}

	colIdx := make(map[string]int, len(header))
	for i, col := range header {
		colIdx[col] = i
	}
	for _, col := range requiredColumns {
		if _, ok := colIdx[col]; !ok {
			return nil, e.Wrap(op, fmt.Errorf("%w: %s", e.ErrMissingColumn, col))
		}
	}

	ds := &Dataset{Columns: append([]string(nil), header...)}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, e.Wrap(op, err)
		}

		row := Row{
			ItemID:        record[colIdx[ColItemID]],
			MarketplaceID: record[colIdx[ColMarketplaceID]],
			ImgID:         record[colIdx[ColImgID]],
			ProductType:   record[colIdx[ColProductType]],
		}
		for i, col := range header {
			switch col {
			case ColItemID, ColMarketplaceID, ColImgID, ColProductType:
			default:
				if row.Extra == nil {
					row.Extra = make(map[string]string)
				}
				row.Extra[col] = record[i]
			}
		}

		ds.Rows = append(ds.Rows, row)
	}

	return ds, nil
}

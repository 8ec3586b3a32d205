package domain

import (
	"encoding/csv"
	"io"

	"github.com/DRSN-tech/inference-pipeline/pkg/e"
)

// OutputTable — объединённый результат прогона. Единственный владелец — оркестратор.
// Колонки объединяются в порядке первого появления; у записей без какой-то колонки
// значение остаётся пустым (результатные и ошибочные строки имеют разные наборы колонок).
type OutputTable struct {
	columns []string
	seen    map[string]struct{}
	records []map[string]string
}

func NewOutputTable() *OutputTable {
	return &OutputTable{seen: make(map[string]struct{})}
}

func (t *OutputTable) Len() int {
	return len(t.records)
}

func (t *OutputTable) Columns() []string {
	return t.columns
}

func (t *OutputTable) Records() []map[string]string {
	return t.records
}

// Append добавляет одну запись; columns задаёт порядок ещё не известных таблице колонок.
func (t *OutputTable) Append(columns []string, record map[string]string) {
	for _, col := range columns {
		if _, ok := t.seen[col]; !ok {
			t.columns = append(t.columns, col)
			t.seen[col] = struct{}{}
		}
	}

	t.records = append(t.records, record)
}

// AppendAll добавляет записи, сохраняя их порядок.
func (t *OutputTable) AppendAll(columns []string, records []map[string]string) {
	for _, record := range records {
		t.Append(columns, record)
	}
}

// WriteCSV сериализует таблицу в CSV с заголовком.
func (t *OutputTable) WriteCSV(w io.Writer) error {
	const op = "OutputTable.WriteCSV"

	writer := csv.NewWriter(w)
	if err := writer.Write(t.columns); err != nil {
		return e.Wrap(op, err)
	}

	line := make([]string, len(t.columns))
	for _, record := range t.records {
		for i, col := range t.columns {
			line[i] = record[col]
		}
		if err := writer.Write(line); err != nil {
			return e.Wrap(op, err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return e.Wrap(op, err)
	}

	return nil
}

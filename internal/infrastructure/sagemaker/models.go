package sagemaker

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/DRSN-tech/inference-pipeline/pkg/e"
)

// stage1Prompt — тело запроса стадии эмбеддингов, по одному physical_id на строку батча.
type stage1Prompt struct {
	PhysicalID []string `json:"physical_id"`
	PT         string   `json:"pt"`
}

// stage2Prompt — тело запроса стадии поиска соседей.
type stage2Prompt struct {
	Embedding   [][]float64 `json:"embedding"`
	PT          string      `json:"pt"`
	Marketplace string      `json:"marketplace"`
}

type embeddingsResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

type neighborsResponse struct {
	NeighborItemIDs [][]any     `json:"neighbor_item_ids"`
	Distances       [][]float64 `json:"neighbor_item_ids_distances"`
}

// decodeEmbeddings строго разбирает JSON-ответ первой стадии.
// Тело никогда не исполняется как код; любой изъян формата — ошибка разбора.
func decodeEmbeddings(raw []byte) ([][]float64, error) {
	var resp embeddingsResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", e.ErrMalformedPayload, err)
	}
	if resp.Embeddings == nil {
		return nil, fmt.Errorf("%w: missing embeddings field", e.ErrMalformedPayload)
	}

	return resp.Embeddings, nil
}

// decodeNeighbors разбирает JSON-ответ второй стадии.
// Эндпоинт может вернуть полезную нагрузку, дополнительно завёрнутую в JSON-строку.
func decodeNeighbors(raw []byte) ([][]string, [][]float64, error) {
	data := bytes.TrimSpace(raw)
	if len(data) > 0 && data[0] == '"' {
		var wrapped string
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, nil, fmt.Errorf("%w: %v", e.ErrMalformedPayload, err)
		}
		data = []byte(wrapped)
	}

	var resp neighborsResponse
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&resp); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", e.ErrMalformedPayload, err)
	}
	if resp.NeighborItemIDs == nil {
		return nil, nil, fmt.Errorf("%w: missing neighbor_item_ids field", e.ErrMalformedPayload)
	}
	if resp.Distances == nil {
		return nil, nil, fmt.Errorf("%w: missing neighbor_item_ids_distances field", e.ErrMalformedPayload)
	}

	ids, err := stringifyIDs(resp.NeighborItemIDs)
	if err != nil {
		return nil, nil, err
	}

	return ids, resp.Distances, nil
}

// stringifyIDs нормализует идентификаторы соседей: эндпоинт отдаёт их
// либо строками, либо числами.
func stringifyIDs(lists [][]any) ([][]string, error) {
	result := make([][]string, 0, len(lists))
	for _, list := range lists {
		ids := make([]string, 0, len(list))
		for _, v := range list {
			switch id := v.(type) {
			case string:
				ids = append(ids, id)
			case json.Number:
				ids = append(ids, id.String())
			default:
				return nil, fmt.Errorf("%w: unexpected neighbor id type %T", e.ErrMalformedPayload, v)
			}
		}
		result = append(result, ids)
	}

	return result, nil
}

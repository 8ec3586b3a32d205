package e

import "fmt"

var (
	// Ошибки валидации батча
	ErrBatchSizeExceeded = fmt.Errorf("batch size exceeded")
	ErrEmptyBatch        = fmt.Errorf("batch is empty")

	// Ошибки справочника маркетплейсов
	ErrUnknownMarketplace = fmt.Errorf("unknown marketplace")

	// Ошибки цепочки инференса
	ErrNoCredentials    = fmt.Errorf("credentials could not be found")
	ErrMalformedPayload = fmt.Errorf("malformed response payload")
	ErrNeighborMismatch = fmt.Errorf("neighbor list count does not match batch size")

	// Ошибки работы с датасетом
	ErrNoInputFiles  = fmt.Errorf("no input files")
	ErrMissingColumn = fmt.Errorf("missing required column")
	ErrEmptyDataset  = fmt.Errorf("dataset is empty")

	// Ошибки конфигурации
	ErrIncorrectEnvVariable = fmt.Errorf("incorrect env variable")
)

// Wrap оборачивает ошибку
func Wrap(msg string, err error) error {
	return fmt.Errorf("%s: %w", msg, err)
}

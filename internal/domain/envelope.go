package domain

// Результат любой операции на любом слое описывается единым конвертом статуса.
const (
	EventSuccess = "SUCCESS"
	EventFailure = "FAILURE"
)

// StatusEnvelope — единая форма отчёта об исходе операции.
type StatusEnvelope struct {
	EventMessage string `json:"event_message"`
	Reason       string `json:"reason"`
}

func NewSuccess(reason string) *StatusEnvelope {
	return &StatusEnvelope{
		EventMessage: EventSuccess,
		Reason:       reason,
	}
}

func NewFailure(reason string) *StatusEnvelope {
	return &StatusEnvelope{
		EventMessage: EventFailure,
		Reason:       reason,
	}
}

// FailureFromError заворачивает ошибку в конверт FAILURE, сохраняя её сообщение.
func FailureFromError(err error) *StatusEnvelope {
	return NewFailure(err.Error())
}

func (s *StatusEnvelope) IsSuccess() bool {
	return s != nil && s.EventMessage == EventSuccess
}

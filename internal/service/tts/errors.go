package tts

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Kind класс ошибки генерации, по нему строится сообщение пользователю.
type Kind string

const (
	KindEmptyInput        Kind = "EmptyInput"
	KindInvalidRequest    Kind = "InvalidRequest"
	KindInvalidCredential Kind = "InvalidCredential"
	KindRequestFailed     Kind = "RequestFailed"
	KindNetworkError      Kind = "NetworkError"
	KindPlaybackError     Kind = "PlaybackError"
	KindStorageError      Kind = "StorageError"
)

// Error классифицированная ошибка. Status заполнен только для RequestFailed и InvalidCredential.
type Error struct {
	Kind   Kind
	Status int
	Err    error
}

// Сентинелы для errors.Is: сравнение идёт по Kind, Status и причина не учитываются.
var (
	ErrEmptyInput        = &Error{Kind: KindEmptyInput}
	ErrInvalidRequest    = &Error{Kind: KindInvalidRequest}
	ErrInvalidCredential = &Error{Kind: KindInvalidCredential}
	ErrRequestFailed     = &Error{Kind: KindRequestFailed}
	ErrNetwork           = &Error{Kind: KindNetworkError}
	ErrPlayback          = &Error{Kind: KindPlaybackError}
	ErrStorage           = &Error{Kind: KindStorageError}
)

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Title и Description — текст уведомления для пользователя.
func (e *Error) Title() string {
	switch e.Kind {
	case KindEmptyInput:
		return "Please enter some text"
	case KindPlaybackError:
		return "Playback failed"
	case KindStorageError:
		return "Could not access the API key store"
	default:
		return "Failed to generate speech"
	}
}

func (e *Error) Description() string {
	switch e.Kind {
	case KindEmptyInput:
		return "Enter the text you want to convert to speech."
	case KindInvalidRequest:
		return "Check the selected voice, model and speed."
	case KindInvalidCredential:
		return "Please check your API key and try again."
	case KindRequestFailed:
		if e.Status != 0 {
			return fmt.Sprintf("The speech service responded with status %d %s.", e.Status, http.StatusText(e.Status))
		}
		return "The speech service rejected the request."
	case KindNetworkError:
		return "Could not reach the speech service. Check your connection and try again."
	case KindPlaybackError:
		return "The generated audio could not be played. You can still download it."
	case KindStorageError:
		return "The API key could not be read or saved."
	default:
		return ""
	}
}

// InvalidRequest параметры запроса вне каталога или диапазона.
func InvalidRequest(err error) error { return &Error{Kind: KindInvalidRequest, Err: err} }

// InvalidCredential ответ сервиса 401.
func InvalidCredential(err error) error {
	return &Error{Kind: KindInvalidCredential, Status: http.StatusUnauthorized, Err: err}
}

// RequestFailed любой другой неуспешный HTTP-статус.
func RequestFailed(status int, err error) error {
	return &Error{Kind: KindRequestFailed, Status: status, Err: err}
}

// NetworkError ответ не получен.
func NetworkError(err error) error { return &Error{Kind: KindNetworkError, Err: err} }

// PlaybackError локальная ошибка декодирования или воспроизведения.
func PlaybackError(err error) error { return &Error{Kind: KindPlaybackError, Err: err} }

// StorageError ошибка хранилища ключа.
func StorageError(err error) error { return &Error{Kind: KindStorageError, Err: err} }

// FromStatus классифицирует неуспешный HTTP-статус.
func FromStatus(status int, err error) error {
	if status == http.StatusUnauthorized {
		return InvalidCredential(err)
	}
	return RequestFailed(status, err)
}

// AsError приводит произвольную ошибку к *Error. Неклассифицированные транспортные
// ошибки и отмена контекста считаются NetworkError, остальное — RequestFailed без статуса.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var te *Error
	if errors.As(err, &te) {
		return te
	}
	var ne net.Error
	if errors.As(err, &ne) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindNetworkError, Err: err}
	}
	return &Error{Kind: KindRequestFailed, Err: err}
}

// KindOf возвращает класс ошибки, пустую строку для nil.
func KindOf(err error) Kind {
	if te := AsError(err); te != nil {
		return te.Kind
	}
	return ""
}

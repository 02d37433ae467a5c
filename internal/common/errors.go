// Package common — errors.go определяет ошибки, общие для всех модулей движка.
// По ним вызывающий код различает виды сбоев через errors.Is и решает,
// пропустить пользователя или остановить весь прогон.
package common

import "errors"

// Ошибки конвейера
var (
	// ErrFetchFailed — не удалось получить события пользователя (сеть, HTTP-статус, JSON).
	// Изолируется на уровне одного пользователя, прогон продолжается.
	ErrFetchFailed = errors.New("не удалось получить события")
	// ErrPersistenceWriteFailed — запись цикла пользователя не удалась, транзакция откатена.
	ErrPersistenceWriteFailed = errors.New("не удалось сохранить цикл пользователя")
	// ErrRunInProgress — прогон уже выполняется
	ErrRunInProgress = errors.New("прогон уже выполняется")
	// ErrCycleConflict — пока шла выборка, статистику пользователя обновил другой цикл.
	// Цикл откатывается, пользователь будет обработан в следующем прогоне.
	ErrCycleConflict = errors.New("статистика пользователя изменилась во время цикла")
)

// Ошибки хранилища и каталога
var (
	// ErrUserNotFound — пользователь не найден в справочнике
	ErrUserNotFound = errors.New("пользователь не найден")
	// ErrInvalidCatalog — каталог достижений некорректен
	ErrInvalidCatalog = errors.New("некорректный каталог достижений")
)

// Ошибки HTTP API
var (
	// ErrUnauthorized — неверный или отсутствующий токен администратора
	ErrUnauthorized = errors.New("неверный токен администратора")
	// ErrTooManyRequests — слишком частые запуски вручную
	ErrTooManyRequests = errors.New("слишком много запросов, подождите")
)

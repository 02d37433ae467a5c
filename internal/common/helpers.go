// Package common содержит общие утилиты, используемые во всём проекте.
// Сюда входят: работа с часовым поясом, форматирование очков и чисел.
package common

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// LoadLocation загружает часовой пояс по имени.
// Если tzdata недоступна — возвращает UTC, чтобы расписание не падало на старте.
func LoadLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// NowUTC возвращает текущее время в UTC, усечённое до микросекунд.
// PostgreSQL хранит TIMESTAMPTZ с микросекундной точностью, поэтому
// время цикла должно совпадать до и после записи.
func NowUTC() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// FormatPoints форматирует очки с двумя знаками после запятой.
// Пример: FormatPoints(decimal.RequireFromString("1.5")) → "1.50"
func FormatPoints(p decimal.Decimal) string {
	return p.StringFixed(2)
}

// FormatDateTime форматирует время в формат "02.01.2006 15:04" в заданном поясе.
func FormatDateTime(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format("02.01.2006 15:04")
}

// FormatNumber форматирует число с разделителями тысяч (пробелами).
// Пример: FormatNumber(2350) → "2 350"
func FormatNumber(n int64) string {
	if n < 0 {
		return "-" + FormatNumber(-n)
	}
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	return fmt.Sprintf("%s %03d", FormatNumber(n/1000), n%1000)
}

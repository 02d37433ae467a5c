// Package common — pluralize.go содержит склонение русских числительных
// для сообщений о наградах.
package common

import "fmt"

// Pluralize возвращает форму слова для числа n.
//
// Правила русского языка:
//   - n%10==1 И n%100!=11 → one (1, 21, 31, ...)
//   - n%10 в [2,3,4] И n%100 НЕ в [12,13,14] → few (2, 3, 4, 22, ...)
//   - остальные → many (0, 5-20, 25-30, ...)
func Pluralize(n int64, one, few, many string) string {
	if n < 0 {
		n = -n
	}
	lastDigit := n % 10
	lastTwoDigits := n % 100

	if lastDigit == 1 && lastTwoDigits != 11 {
		return one
	}
	if lastDigit >= 2 && lastDigit <= 4 && (lastTwoDigits < 12 || lastTwoDigits > 14) {
		return few
	}
	return many
}

// PluralizeAchievements возвращает форму слова «достижение».
func PluralizeAchievements(n int64) string {
	return Pluralize(n, "достижение", "достижения", "достижений")
}

// PluralizeActions возвращает форму слова «действие».
func PluralizeActions(n int64) string {
	return Pluralize(n, "действие", "действия", "действий")
}

// FormatCount создаёт строку вида "3 достижения".
func FormatCount(n int64, form func(int64) string) string {
	return fmt.Sprintf("%s %s", FormatNumber(n), form(n))
}

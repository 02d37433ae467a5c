// Package ledger — recorder.go превращает подсчёт за цикл в строки журнала.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Counts — количество классифицированных событий по типам за один цикл.
type Counts map[ActionType]int64

// Total возвращает сумму по всем типам.
func (c Counts) Total() int64 {
	var n int64
	for _, v := range c {
		n += v
	}
	return n
}

// Record строит строки журнала для одного цикла.
//
// Политика нулей: строка пишется для КАЖДОГО типа, даже если действий не было.
// Так у каждого цикла ровно len(ActionTypes) строк и ровный ритм журнала.
// Все строки получают одну и ту же дату цикла fetchDate (в UTC).
func Record(userID int64, counts Counts, fetchDate time.Time) []Transaction {
	fetchDate = fetchDate.UTC().Truncate(time.Microsecond)

	rows := make([]Transaction, 0, len(ActionTypes))
	for _, a := range ActionTypes {
		value := counts[a]
		if value < 0 {
			value = 0
		}
		rows = append(rows, Transaction{
			UserID:     userID,
			ActionType: a,
			FetchDate:  fetchDate,
			Value:      value,
		})
	}
	return rows
}

// NextFetchDate возвращает дату нового цикла, строго большую водяного знака.
// Если часы отстали (или два цикла попали в одну микросекунду), дата сдвигается
// на 1 мкс за водяной знак — иначе накопитель счёл бы строки уже учтёнными.
func NextFetchDate(now, watermark time.Time) time.Time {
	now = now.UTC().Truncate(time.Microsecond)
	if !now.After(watermark) {
		return watermark.UTC().Add(time.Microsecond)
	}
	return now
}

// Points возвращает сумму очков по строкам.
func Points(rows []Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, r := range rows {
		total = total.Add(r.Points())
	}
	return total
}

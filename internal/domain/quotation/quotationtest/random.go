// Package quotationtest builds quotations for tests.
package quotationtest

import (
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/quotation/backend/internal/domain/quotation"
	"github.com/quotation/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

var units = []string{"person-day", "hour", "page", "screen", "licence"}

var currencies = []valueobject.Currency{valueobject.USD, valueobject.EUR, valueobject.JPY, valueobject.KRW}

// Random returns a valid quotation generated from seed. The same seed always
// yields the same content (identifiers aside).
func Random(seed uint64) (quotation.Quotation, error) {
	f := gofakeit.New(seed)
	q, err := quotation.New(quotation.Header{
		Client:   f.Company(),
		Issuer:   f.Company(),
		Date:     time.Date(2020+f.IntRange(0, 6), time.Month(f.IntRange(1, 12)), f.IntRange(1, 28), 0, 0, 0, 0, time.UTC),
		Currency: currencies[f.IntRange(0, len(currencies)-1)],
		TaxRate:  decimal.New(int64(f.IntRange(0, 250)), -3),
	})
	if err != nil {
		return q, err
	}

	categories := f.IntRange(1, 5)
	for c := 0; c < categories; c++ {
		var cat quotation.Category
		q, cat, err = q.AddCategory(fmt.Sprintf("%s %d", f.Word(), c+1), f.Bool())
		if err != nil {
			return q, err
		}
		tasks := f.IntRange(0, 12)
		for i := 0; i < tasks; i++ {
			q, _, err = q.AddTask(cat.ID, quotation.TaskInput{
				Name:     f.Word() + " " + f.Word(),
				Unit:     units[f.IntRange(0, len(units)-1)],
				Quantity: decimal.New(int64(f.IntRange(0, 400)), -1),
				UnitRate: decimal.New(int64(f.IntRange(0, 9999999)), -2),
			})
			if err != nil {
				return q, err
			}
		}
	}
	return q, nil
}

// MustRandom is Random for test setup code
func MustRandom(seed uint64) quotation.Quotation {
	q, err := Random(seed)
	if err != nil {
		panic(err)
	}
	return q
}

// SingleCategory returns a quotation with one category holding n tasks of
// quantity 1 and rate 1000.
func SingleCategory(n int) quotation.Quotation {
	q, err := quotation.New(quotation.Header{Client: "Acme", Issuer: "Studio", Currency: valueobject.USD})
	if err != nil {
		panic(err)
	}
	q, cat, err := q.AddCategory("Development", false)
	if err != nil {
		panic(err)
	}
	for i := 0; i < n; i++ {
		q, _, err = q.AddTask(cat.ID, quotation.TaskInput{
			Name:     fmt.Sprintf("Task %d", i+1),
			Unit:     "person-day",
			Quantity: decimal.NewFromInt(1),
			UnitRate: decimal.NewFromInt(1000),
		})
		if err != nil {
			panic(err)
		}
	}
	return q
}
